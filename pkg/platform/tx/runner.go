package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx carries an open transaction in context. Tx-aware stores and the
// advisory locker run their statements on it instead of the pool, so every
// write inside one unit of work shares a connection and a commit.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function as one unit of work. Lifecycle services wrap
// each mutation in InTx so the aggregate write, the assessment creation, and
// the outbox append either all commit or all roll back; a collaborator fault
// mid-operation leaves no partial state behind.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner opens one database transaction per unit of work and carries it
// in context, where the tx-aware stores and the advisory locker pick it up.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested units of work join the surrounding transaction.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	if err := fn(WithTx(ctx, dbtx)); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// NopRunner is the unit of work for the in-memory stores, which have no
// transaction to share. Services ordering their writes after collaborator
// calls is what keeps the fault path clean on this backend.
type NopRunner struct{}

func NewNopRunner() NopRunner { return NopRunner{} }

func (NopRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
