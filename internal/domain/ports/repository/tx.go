package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction. The concrete tx
// handle (pgx.Tx for Postgres) is passed through as Tx; repositories must
// accept NoTX and fall back to the pool.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
