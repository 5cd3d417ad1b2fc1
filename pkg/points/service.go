package points

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/points/internal/keylock"
)

// Service applies charges and uses one at a time per user.
type Service struct {
	store  Store
	nowFn  func() int64
	limits Limits
	locks  *keylock.Registry[int64]
	logger OperationLogger
}

// NewService wires a Service. now returns the current time in unix milliseconds.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:  store,
		nowFn:  now,
		limits: DefaultLimits(),
		locks:  keylock.New[int64](),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.limits.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServiceConfig, err)
	}
	return service, nil
}

// Limits returns the limits the service validates against.
func (service *Service) Limits() Limits {
	return service.limits
}

// Balance reads the latest balance without waiting on the user's lock.
func (service *Service) Balance(ctx context.Context, userID UserID) (UserPoint, error) {
	return service.store.GetBalance(ctx, userID)
}

// History lists the user's ledger entries in insertion order.
func (service *Service) History(ctx context.Context, userID UserID) ([]PointHistory, error) {
	entries, err := service.store.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []PointHistory{}
	}
	return entries, nil
}

// Charge adds amount to the user's balance.
func (service *Service) Charge(ctx context.Context, userID UserID, amount Amount) (UserPoint, error) {
	updated, operationError := service.mutate(ctx, userID, amount, TransactionCharge, func(current Point) (Point, error) {
		if err := service.limits.ValidateChargeAmount(amount); err != nil {
			return 0, err
		}
		if err := service.limits.ValidateTotalPoints(current, amount); err != nil {
			return 0, err
		}
		return current + Point(amount), nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCharge,
		UserID:    userID,
		Amount:    amount,
		Balance:   updated.Point,
		Error:     operationError,
	})
	return updated, operationError
}

// Use deducts amount from the user's balance.
func (service *Service) Use(ctx context.Context, userID UserID, amount Amount) (UserPoint, error) {
	updated, operationError := service.mutate(ctx, userID, amount, TransactionUse, func(current Point) (Point, error) {
		if err := service.limits.ValidateSufficientBalance(current, amount); err != nil {
			return 0, err
		}
		return current - Point(amount), nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUse,
		UserID:    userID,
		Amount:    amount,
		Balance:   updated.Point,
		Error:     operationError,
	})
	return updated, operationError
}

// mutate runs read, validate, append, write under the user's lock.
// A rejected mutation returns before either store is written.
func (service *Service) mutate(ctx context.Context, userID UserID, amount Amount, transactionType TransactionType, next func(current Point) (Point, error)) (UserPoint, error) {
	unlock := service.locks.Lock(userID.Int64())
	defer unlock()

	var updated UserPoint
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		nextPoint, err := next(current.Point)
		if err != nil {
			return err
		}
		nowMillis := service.nowFn()
		if _, err := transactionStore.AppendHistory(ctx, userID, amount, transactionType, nowMillis); err != nil {
			return err
		}
		updated, err = transactionStore.UpsertBalance(ctx, userID, nextPoint, nowMillis)
		return err
	})
	if err != nil {
		return UserPoint{}, err
	}
	return updated, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	switch {
	case entry.Error == nil:
		entry.Status = operationStatusOK
	case IsRejection(entry.Error):
		entry.Status = operationStatusRejected
	default:
		entry.Status = operationStatusError
	}
	service.logger.LogOperation(ctx, entry)
}
