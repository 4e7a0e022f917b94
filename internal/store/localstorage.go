package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetLocal returns the raw value stored under key, and false if the key has
// never been written.
func GetLocal(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading local key %q: %w", key, err)
	}
	return value, true, nil
}

// SetLocal replaces the value stored under key in a single statement.
func SetLocal(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO local_storage (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing local key %q: %w", key, err)
	}
	return nil
}

// RemoveLocal deletes key. Removing a missing key is not an error.
func RemoveLocal(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing local key %q: %w", key, err)
	}
	return nil
}
