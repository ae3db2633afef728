package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// getOrInitSetting returns the value stored under key, initialising it with
// value on first use. INSERT OR IGNORE plus a read-back keeps concurrent
// startups from racing each other to different values.
func getOrInitSetting(ctx context.Context, db *sql.DB, key, value string) (string, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value,
	)
	if err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	var stored string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return stored, nil
}

// GetJWTSecret returns the persisted token signing secret, generating one on
// first startup. Persisting it means sessions survive server restarts.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return getOrInitSetting(ctx, db, "jwt_secret", hex.EncodeToString(buf))
}
