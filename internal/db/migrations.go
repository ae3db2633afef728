package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations at the
// end.
var migrations = []string{
	// Migration 1: items created before geocoding enrichment shipped carry a
	// NULL city even when coordinates exist; backfill is handled lazily by
	// the API, but the column must allow lookups without tripping over the
	// old hard index.
	`CREATE INDEX IF NOT EXISTS idx_items_city ON items(city) WHERE deleted_at IS NULL`,
	// Migration 2: speed up unread counts.
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_created
	     ON chat_messages(chat_id, created_at)`,
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
