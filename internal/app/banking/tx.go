package banking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// runTx runs fn inside a transaction. It commits only when fn returns commit=true and no error;
// a rejection (commit=false, nil error) rolls back silently.
func (s *bankingService) runTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) (bool, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic during transaction, rolling back", zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	commit, err := fn(ctx, tx)
	if err == nil && commit {
		// A caller that gave up before this point must not see its movement applied.
		err = ctx.Err()
	}
	if err != nil || !commit {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			if err == nil {
				return fmt.Errorf("failed to roll back transaction: %w", rbErr)
			}
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
