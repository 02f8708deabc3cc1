package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner executes a function atomically. The SQL implementation opens a
// transaction and threads it through context so every store call inside fn
// lands on the same *sql.Tx; the Nop runner backs memory stores in tests.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlRunner struct {
	db *sql.DB
}

// NewRunner returns a Runner over the given database handle.
func NewRunner(db *sql.DB) Runner {
	return &sqlRunner{db: db}
}

func (r *sqlRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, dbTx)); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type nopRunner struct{}

// NewNopRunner returns a Runner that calls fn directly, for stores that do
// not speak SQL.
func NewNopRunner() Runner {
	return nopRunner{}
}

func (nopRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
