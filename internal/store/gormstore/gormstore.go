package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorOperationStore = "store"
	errorSubjectBalance = "balance"
	errorSubjectHistory = "history"
	errorSubjectSchema  = "schema"
	errorCodeAppend     = "append"
	errorCodeGet        = "get"
	errorCodeInvalid    = "invalid"
	errorCodeList       = "list"
	errorCodeMigrate    = "migrate"
	errorCodeUpsert     = "upsert"
)

// Store implements points.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables used by the store.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return points.WrapStorageError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore points.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetBalance returns the user's row or a zero record when none exists.
func (store *Store) GetBalance(ctx context.Context, userID points.UserID) (points.UserPoint, error) {
	var row UserPoint
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points.EmptyUserPoint(userID), nil
	}
	if err != nil {
		return points.UserPoint{}, points.WrapStorageError(errorSubjectBalance, errorCodeGet, err)
	}
	return mapUserPoint(row)
}

// UpsertBalance inserts or overwrites the user's row keyed by user_id.
func (store *Store) UpsertBalance(ctx context.Context, userID points.UserID, point points.Point, updatedAtMillis int64) (points.UserPoint, error) {
	row := UserPoint{
		UserID:          userID.Int64(),
		Point:           point.Int64(),
		UpdatedAtMillis: updatedAtMillis,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"point", "updated_at_millis"}),
		}).
		Create(&row).Error
	if err != nil {
		return points.UserPoint{}, points.WrapStorageError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}, nil
}

func (store *Store) AppendHistory(ctx context.Context, userID points.UserID, amount points.Amount, transactionType points.TransactionType, timestampMillis int64) (points.PointHistory, error) {
	row := PointHistory{
		UserID:          userID.Int64(),
		Amount:          amount.Int64(),
		Type:            transactionType.String(),
		TimestampMillis: timestampMillis,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return points.PointHistory{}, points.WrapStorageError(errorSubjectHistory, errorCodeAppend, err)
	}
	return points.PointHistory{
		ID:              row.ID,
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: timestampMillis,
	}, nil
}

// ListHistory returns the user's entries ordered by id.
func (store *Store) ListHistory(ctx context.Context, userID points.UserID) ([]points.PointHistory, error) {
	var rows []PointHistory
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.Int64()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, points.WrapStorageError(errorSubjectHistory, errorCodeList, err)
	}
	entries := make([]points.PointHistory, 0, len(rows))
	for _, row := range rows {
		entry, err := mapPointHistory(row)
		if err != nil {
			return nil, points.WrapError(errorOperationStore, errorSubjectHistory, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapUserPoint(row UserPoint) (points.UserPoint, error) {
	userID, err := points.NewUserID(row.UserID)
	if err != nil {
		return points.UserPoint{}, points.WrapError(errorOperationStore, errorSubjectBalance, errorCodeInvalid, err)
	}
	point, err := points.NewPoint(row.Point)
	if err != nil {
		return points.UserPoint{}, points.WrapError(errorOperationStore, errorSubjectBalance, errorCodeInvalid, err)
	}
	return points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: row.UpdatedAtMillis}, nil
}

func mapPointHistory(row PointHistory) (points.PointHistory, error) {
	userID, err := points.NewUserID(row.UserID)
	if err != nil {
		return points.PointHistory{}, err
	}
	amount, err := points.NewAmount(row.Amount)
	if err != nil {
		return points.PointHistory{}, err
	}
	transactionType, err := points.ParseTransactionType(row.Type)
	if err != nil {
		return points.PointHistory{}, err
	}
	return points.PointHistory{
		ID:              row.ID,
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: row.TimestampMillis,
	}, nil
}
