package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is the part of database/sql the repositories run statements through.
// Both *sql.DB and *sql.Tx satisfy it.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise. A panic in fn rolls back and is re-raised.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx Tx) error) (err error) {
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := t.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
			}
			return
		}
		if cerr := t.Commit(); cerr != nil {
			err = fmt.Errorf("committing transaction: %w", cerr)
		}
	}()

	return fn(ctx, t)
}
