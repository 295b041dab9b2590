package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

// Ensure implementation of SettingsRepo at compile time.
var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	upsertSettingSQL = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	selectSettingSQL = `SELECT value FROM settings WHERE key=?`
)

// Set inserts or replaces the value stored under key.
func (r *SettingsSQLite) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertSettingSQL, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	return nil
}

// Get reads the value under key; a missing key is not an error.
func (r *SettingsSQLite) Get(ctx context.Context, key string) (string, error) {
	var v string
	if err := r.db.QueryRowContext(ctx, selectSettingSQL, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("select setting %q: %w", key, err)
	}
	return v, nil
}
