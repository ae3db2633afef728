package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CountUsers returns the number of non-deleted users.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	return countRows(ctx, db, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`)
}

// CountItemsByType returns the number of non-deleted items of a type, or all
// items when itemType is empty.
func CountItemsByType(ctx context.Context, db *sql.DB, itemType string) (int, error) {
	if itemType == "" {
		return countRows(ctx, db, `SELECT COUNT(*) FROM items WHERE deleted_at IS NULL`)
	}
	return countRows(ctx, db, `SELECT COUNT(*) FROM items WHERE deleted_at IS NULL AND type = ?`, itemType)
}

// CountResolvedItems returns the number of resolved item reports.
func CountResolvedItems(ctx context.Context, db *sql.DB) (int, error) {
	return countRows(ctx, db, `SELECT COUNT(*) FROM items WHERE deleted_at IS NULL AND status = 'resolved'`)
}

// CountMessages returns the total number of chat messages exchanged.
func CountMessages(ctx context.Context, db *sql.DB) (int, error) {
	return countRows(ctx, db, `SELECT COUNT(*) FROM chat_messages`)
}

func countRows(ctx context.Context, db *sql.DB, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}
