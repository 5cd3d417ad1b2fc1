package points

import (
	"context"
	"fmt"
	"strings"
)

// UserID identifies a point balance owner.
type UserID struct {
	value int64
}

// NewUserID validates a user id; ids are non-negative integers.
func NewUserID(raw int64) (UserID, error) {
	if raw < 0 {
		return UserID{}, fmt.Errorf("%w: must not be negative", ErrInvalidUserID)
	}
	return UserID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id UserID) Int64() int64 {
	return id.value
}

// String returns the decimal identifier.
func (id UserID) String() string {
	return fmt.Sprintf("%d", id.value)
}

// Amount is the positive magnitude of a charge or use.
type Amount int64

// NewAmount validates an amount and ensures it is strictly positive.
func NewAmount(raw int64) (Amount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// Int64 returns the raw amount.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// Point is a balance; never negative.
type Point int64

// NewPoint validates a balance value.
func NewPoint(raw int64) (Point, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPoint)
	}
	return Point(raw), nil
}

// Int64 returns the raw balance.
func (point Point) Int64() int64 {
	return int64(point)
}

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TransactionCharge TransactionType = "CHARGE"
	TransactionUse    TransactionType = "USE"
)

// ParseTransactionType validates a stored transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(raw))) {
	case TransactionCharge:
		return TransactionCharge, nil
	case TransactionUse:
		return TransactionUse, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
}

// String returns the wire name of the type.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// UserPoint is the latest balance of a user.
type UserPoint struct {
	UserID          UserID
	Point           Point
	UpdatedAtMillis int64
}

// EmptyUserPoint is the balance of a user with no recorded mutation.
func EmptyUserPoint(userID UserID) UserPoint {
	return UserPoint{UserID: userID}
}

// PointHistory is a single immutable line in the ledger.
type PointHistory struct {
	ID              int64
	UserID          UserID
	Amount          Amount
	Type            TransactionType
	TimestampMillis int64
}

// BalanceStore holds the latest balance per user.
type BalanceStore interface {
	// GetBalance returns the zero balance for unknown users.
	GetBalance(ctx context.Context, userID UserID) (UserPoint, error)
	UpsertBalance(ctx context.Context, userID UserID, point Point, updatedAtMillis int64) (UserPoint, error)
}

// LedgerStore is the append-only transaction record.
type LedgerStore interface {
	AppendHistory(ctx context.Context, userID UserID, amount Amount, transactionType TransactionType, timestampMillis int64) (PointHistory, error)
	// ListHistory returns entries in insertion order.
	ListHistory(ctx context.Context, userID UserID) ([]PointHistory, error)
}

// Store is the persistence contract used by Service.
type Store interface {
	BalanceStore
	LedgerStore
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
}
