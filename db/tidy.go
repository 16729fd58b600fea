package db

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Tidy opens the database at path and prunes it down to keep items. It backs
// the standalone tidy command; the synchronizer calls Writer.Prune on its
// shared connection instead.
func Tidy(ctx context.Context, database string, keep int) (int64, error) {
	db, err := connection(database)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return prune(ctx, db, keep)
}

// prune deletes the oldest rows beyond keep in one transaction. Oldest means
// smallest time, with the id as tie-break so repeated runs settle on the same
// survivors.
func prune(ctx context.Context, db *sql.DB, keep int) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&total); err != nil {
		return 0, fmt.Errorf("count error: %w", err)
	}

	excess := total - keep
	if excess <= 0 {
		return 0, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM items WHERE id IN (
			SELECT id FROM items ORDER BY time ASC, id ASC LIMIT ?
		)`, excess)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"keep":   keep,
		"pruned": pruned,
	}).Info("Pruned old items")

	return pruned, nil
}
