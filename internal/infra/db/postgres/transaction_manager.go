package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager for Postgres (pgx).
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx opens a transaction, passes it to fn and commits when fn succeeds.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err // rollback in defer
	}
	return tx.Commit(ctx)
}

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	case nil:
		if pool != nil {
			return pool, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidArgument
	}
}

// hashToInt64 maps a string id onto the advisory lock key space.
func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}
