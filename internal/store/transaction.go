package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/solfege-app/glossary/internal/platform/logger"
)

// TxFn runs inside a transaction. Returning nil commits, returning an
// error rolls back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction opens a transaction on db, runs fn, and commits if fn
// succeeds. On error or panic the transaction is rolled back; a panic is
// re-raised after the rollback so the connection is never left holding an
// open transaction. The recovery service relies on this for its paired
// dead-letter writes and backlog deletes.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Error("rollback after panic failed",
					slog.String("error", rollbackErr.Error()),
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("rollback failed: %v (cause: %w)", rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
