// Package memstore keeps balances and ledger entries in process memory.
package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
)

// Store implements points.Store with one independent cell per user.
type Store struct {
	balances  sync.Map
	histories sync.Map
	lastID    atomic.Int64
}

type historyCell struct {
	mu      sync.Mutex
	entries []points.PointHistory
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// WithTx runs fn inline; memory writes cannot fail part way.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore points.Store) error) error {
	return fn(ctx, store)
}

// GetBalance returns the stored balance or a zero record for an unknown user.
func (store *Store) GetBalance(ctx context.Context, userID points.UserID) (points.UserPoint, error) {
	value, ok := store.balances.Load(userID.Int64())
	if !ok {
		return points.EmptyUserPoint(userID), nil
	}
	return value.(points.UserPoint), nil
}

// UpsertBalance replaces the user's balance.
func (store *Store) UpsertBalance(ctx context.Context, userID points.UserID, point points.Point, updatedAtMillis int64) (points.UserPoint, error) {
	userPoint := points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}
	store.balances.Store(userID.Int64(), userPoint)
	return userPoint, nil
}

// AppendHistory records an entry with the next store-wide id.
func (store *Store) AppendHistory(ctx context.Context, userID points.UserID, amount points.Amount, transactionType points.TransactionType, timestampMillis int64) (points.PointHistory, error) {
	cell := store.historyCell(userID)
	cell.mu.Lock()
	defer cell.mu.Unlock()
	entry := points.PointHistory{
		ID:              store.lastID.Add(1),
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: timestampMillis,
	}
	cell.entries = append(cell.entries, entry)
	return entry, nil
}

// ListHistory returns a copy of the user's entries in insertion order.
func (store *Store) ListHistory(ctx context.Context, userID points.UserID) ([]points.PointHistory, error) {
	value, ok := store.histories.Load(userID.Int64())
	if !ok {
		return []points.PointHistory{}, nil
	}
	cell := value.(*historyCell)
	cell.mu.Lock()
	defer cell.mu.Unlock()
	entries := make([]points.PointHistory, len(cell.entries))
	copy(entries, cell.entries)
	return entries, nil
}

func (store *Store) historyCell(userID points.UserID) *historyCell {
	if value, ok := store.histories.Load(userID.Int64()); ok {
		return value.(*historyCell)
	}
	value, _ := store.histories.LoadOrStore(userID.Int64(), &historyCell{})
	return value.(*historyCell)
}
