package points

import (
	"context"
	"sync"
	"testing"
	"time"
)

type gatedStore struct {
	*stubStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(test *testing.T) *gatedStore {
	test.Helper()
	return &gatedStore{
		stubStore: newStubStore(test),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (store *gatedStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

// GetBalance blocks the first caller until release is closed.
func (store *gatedStore) GetBalance(ctx context.Context, userID UserID) (UserPoint, error) {
	first := false
	store.once.Do(func() { first = true })
	if first {
		close(store.entered)
		<-store.release
	}
	return store.stubStore.GetBalance(ctx, userID)
}

func TestChargesApplyInSubmissionOrder(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		options []ServiceOption
	}{
		{name: "default registry"},
		{name: "evicting registry", options: []ServiceOption{WithIdleLockEviction()}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newGatedStore(test)
			service := mustNewService(test, store, testCase.options...)
			userID := mustUserID(test, 1)
			const queued = 20

			var group sync.WaitGroup
			failures := make(chan error, queued+1)
			charge := func(amount Amount) {
				defer group.Done()
				if _, err := service.Charge(context.Background(), userID, amount); err != nil {
					failures <- err
				}
			}

			group.Add(1)
			go charge(mustAmount(test, 1_000))
			<-store.entered
			for index := 1; index <= queued; index++ {
				group.Add(1)
				go charge(mustAmount(test, int64(index+1)*1_000))
				waitForQueuedCallers(test, service, userID, index)
			}
			close(store.release)
			group.Wait()
			close(failures)
			for err := range failures {
				test.Fatalf("charge failed: %v", err)
			}

			histories, err := service.History(context.Background(), userID)
			if err != nil {
				test.Fatalf("history: %v", err)
			}
			if len(histories) != queued+1 {
				test.Fatalf("expected %d entries, got %d", queued+1, len(histories))
			}
			for index, history := range histories {
				if history.Amount != Amount(int64(index+1)*1_000) {
					test.Fatalf("entry %d: expected amount %d, got %d", index, (index+1)*1_000, history.Amount)
				}
			}
		})
	}
}

func waitForQueuedCallers(test *testing.T, service *Service, userID UserID, count int) {
	test.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for service.locks.Waiters(userID.Int64()) < count {
		if time.Now().After(deadline) {
			test.Fatalf("timed out waiting for %d queued callers", count)
		}
		time.Sleep(time.Millisecond)
	}
}
