package points

import (
	"context"
	"sync"
	"testing"
)

type stubStore struct {
	mu       sync.Mutex
	balances map[int64]UserPoint
	entries  []PointHistory
	nextID   int64

	getBalanceError    error
	upsertBalanceError error
	appendHistoryError error
	listHistoryError   error

	upsertCalls int
	appendCalls int
	txCalls     int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{balances: map[int64]UserPoint{}}
}

func (store *stubStore) seed(test *testing.T, userID UserID, point int64) {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.balances[userID.Int64()] = UserPoint{UserID: userID, Point: mustPoint(test, point)}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	store.txCalls++
	store.mu.Unlock()
	return fn(ctx, store)
}

func (store *stubStore) GetBalance(ctx context.Context, userID UserID) (UserPoint, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.getBalanceError != nil {
		return UserPoint{}, store.getBalanceError
	}
	userPoint, ok := store.balances[userID.Int64()]
	if !ok {
		return EmptyUserPoint(userID), nil
	}
	return userPoint, nil
}

func (store *stubStore) UpsertBalance(ctx context.Context, userID UserID, point Point, updatedAtMillis int64) (UserPoint, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.upsertCalls++
	if store.upsertBalanceError != nil {
		return UserPoint{}, store.upsertBalanceError
	}
	userPoint := UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}
	store.balances[userID.Int64()] = userPoint
	return userPoint, nil
}

func (store *stubStore) AppendHistory(ctx context.Context, userID UserID, amount Amount, transactionType TransactionType, timestampMillis int64) (PointHistory, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.appendCalls++
	if store.appendHistoryError != nil {
		return PointHistory{}, store.appendHistoryError
	}
	store.nextID++
	entry := PointHistory{
		ID:              store.nextID,
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: timestampMillis,
	}
	store.entries = append(store.entries, entry)
	return entry, nil
}

func (store *stubStore) ListHistory(ctx context.Context, userID UserID) ([]PointHistory, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.listHistoryError != nil {
		return nil, store.listHistoryError
	}
	var entries []PointHistory
	for _, entry := range store.entries {
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return fixedNowMillis }, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw int64) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func mustAmount(test *testing.T, raw int64) Amount {
	test.Helper()
	amount, err := NewAmount(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return amount
}

func mustPoint(test *testing.T, raw int64) Point {
	test.Helper()
	point, err := NewPoint(raw)
	if err != nil {
		test.Fatalf("point: %v", err)
	}
	return point
}
