package repository

import (
	"context"
	"database/sql"
	"time"

	"weather_dashboard/internal/models"
)

// SettingsRepo is a small persistent key/value store.
// Get returns "" with a nil error when the key was never set.
type SettingsRepo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// EventFilter narrows an event listing; zero fields do not filter.
type EventFilter struct {
	From      time.Time
	To        time.Time
	Type      string
	SessionID string
}

type EventRepo interface {
	Append(ctx context.Context, e models.FetchEvent) error
	List(ctx context.Context, f EventFilter) ([]models.FetchEvent, error)
}

type Repository struct {
	Settings  SettingsRepo
	EventRepo EventRepo
}

// NewRepository wires the SQLite implementations on one connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings:  NewSettingsSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
