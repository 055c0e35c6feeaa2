package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `qx`.
//
// RATIONALE
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Repository methods that accept `qx Tx` detect a live transaction and run
//   SELECT ... FOR UPDATE / tx-bound Exec as needed.
// - Repositories MUST gracefully accept NoTX (non-transactional path).
//
// The billing core leans on this for the transaction-splitting discipline:
// short WithTx blocks around writes, with provider HTTP calls strictly
// between them, never inside.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx Tx) error) error
}
