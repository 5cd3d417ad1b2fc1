package pgstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errorOperationStore     = "store"
	errorSubjectBalance     = "balance"
	errorSubjectHistory     = "history"
	errorSubjectSchema      = "schema"
	errorSubjectTransaction = "transaction"
	errorCodeAppend         = "append"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeEnsure         = "ensure"
	errorCodeGet            = "get"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeUpsert         = "upsert"

	sqlCreateUserPoints = `
		create table if not exists user_points (
			user_id bigint primary key,
			point bigint not null check (point >= 0),
			updated_at_millis bigint not null
		)
	`

	sqlCreatePointHistories = `
		create table if not exists point_histories (
			id bigint generated always as identity primary key,
			user_id bigint not null,
			amount bigint not null check (amount > 0),
			type text not null,
			timestamp_millis bigint not null
		)
	`

	sqlCreatePointHistoriesIndex = `
		create index if not exists idx_point_histories_user_id on point_histories(user_id, id)
	`

	sqlSelectBalance = `
		select point, updated_at_millis from user_points where user_id = $1
	`

	sqlUpsertBalance = `
		insert into user_points(user_id, point, updated_at_millis) values ($1, $2, $3)
		on conflict (user_id) do update set point = excluded.point, updated_at_millis = excluded.updated_at_millis
	`

	sqlInsertHistory = `
		insert into point_histories(user_id, amount, type, timestamp_millis) values ($1, $2, $3, $4)
		returning id
	`

	sqlListHistory = `
		select id, amount, type, timestamp_millis from point_histories
		where user_id = $1
		order by id asc
	`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements points.Store using a pgx connection pool (autocommit).
type Store struct {
	pool *pgxpool.Pool
	queries
}

// TxStore implements points.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

// EnsureSchema creates the tables used by the store when they are missing.
func (store *Store) EnsureSchema(ctx context.Context) error {
	for _, statement := range []string{sqlCreateUserPoints, sqlCreatePointHistories, sqlCreatePointHistoriesIndex} {
		if _, err := store.pool.Exec(ctx, statement); err != nil {
			return points.WrapStorageError(errorSubjectSchema, errorCodeEnsure, err)
		}
	}
	return nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore points.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return points.WrapStorageError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{tx: tx, queries: queries{db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return points.WrapStorageError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx runs fn inside a savepoint of the active transaction.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore points.Store) error) error {
	savepoint, err := store.tx.Begin(ctx)
	if err != nil {
		return points.WrapStorageError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &TxStore{tx: savepoint, queries: queries{db: savepoint}}); err != nil {
		_ = savepoint.Rollback(ctx)
		return err
	}
	if err := savepoint.Commit(ctx); err != nil {
		return points.WrapStorageError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

type queries struct {
	db querier
}

func (q queries) GetBalance(ctx context.Context, userID points.UserID) (points.UserPoint, error) {
	var pointValue int64
	var updatedAtMillis int64
	err := q.db.QueryRow(ctx, sqlSelectBalance, userID.Int64()).Scan(&pointValue, &updatedAtMillis)
	if errors.Is(err, pgx.ErrNoRows) {
		return points.EmptyUserPoint(userID), nil
	}
	if err != nil {
		return points.UserPoint{}, points.WrapStorageError(errorSubjectBalance, errorCodeGet, err)
	}
	point, err := points.NewPoint(pointValue)
	if err != nil {
		return points.UserPoint{}, points.WrapError(errorOperationStore, errorSubjectBalance, errorCodeInvalid, err)
	}
	return points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}, nil
}

func (q queries) UpsertBalance(ctx context.Context, userID points.UserID, point points.Point, updatedAtMillis int64) (points.UserPoint, error) {
	if _, err := q.db.Exec(ctx, sqlUpsertBalance, userID.Int64(), point.Int64(), updatedAtMillis); err != nil {
		return points.UserPoint{}, points.WrapStorageError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}, nil
}

func (q queries) AppendHistory(ctx context.Context, userID points.UserID, amount points.Amount, transactionType points.TransactionType, timestampMillis int64) (points.PointHistory, error) {
	var id int64
	err := q.db.QueryRow(ctx, sqlInsertHistory, userID.Int64(), amount.Int64(), transactionType.String(), timestampMillis).Scan(&id)
	if err != nil {
		return points.PointHistory{}, points.WrapStorageError(errorSubjectHistory, errorCodeAppend, err)
	}
	return points.PointHistory{
		ID:              id,
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: timestampMillis,
	}, nil
}

func (q queries) ListHistory(ctx context.Context, userID points.UserID) ([]points.PointHistory, error) {
	rows, err := q.db.Query(ctx, sqlListHistory, userID.Int64())
	if err != nil {
		return nil, points.WrapStorageError(errorSubjectHistory, errorCodeList, err)
	}
	defer rows.Close()

	entries := make([]points.PointHistory, 0)
	for rows.Next() {
		var (
			id              int64
			amountValue     int64
			typeValue       string
			timestampMillis int64
		)
		if err := rows.Scan(&id, &amountValue, &typeValue, &timestampMillis); err != nil {
			return nil, points.WrapStorageError(errorSubjectHistory, errorCodeList, err)
		}
		amount, err := points.NewAmount(amountValue)
		if err != nil {
			return nil, points.WrapError(errorOperationStore, errorSubjectHistory, errorCodeInvalid, err)
		}
		transactionType, err := points.ParseTransactionType(typeValue)
		if err != nil {
			return nil, points.WrapError(errorOperationStore, errorSubjectHistory, errorCodeInvalid, err)
		}
		entries = append(entries, points.PointHistory{
			ID:              id,
			UserID:          userID,
			Amount:          amount,
			Type:            transactionType,
			TimestampMillis: timestampMillis,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, points.WrapStorageError(errorSubjectHistory, errorCodeList, err)
	}
	return entries, nil
}
