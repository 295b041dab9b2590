package service

import (
	"context"

	"weather_dashboard/internal/models"
	"weather_dashboard/internal/repository"
)

// Fetcher looks up current conditions for a city. *weather.Client implements it.
type Fetcher interface {
	FetchWeather(ctx context.Context, city string) (models.WeatherSnapshot, error)
}

// Controller drives one dashboard: startup load, searches, refreshes and the
// background timer.
type Controller interface {
	Activate(ctx context.Context)
	Deactivate()
	Search(ctx context.Context, city string) bool
	Refresh(ctx context.Context) bool
	State() models.DashboardState
	Subscribe() (<-chan models.DashboardState, func())
	WatchCity(fn func(city string))
}

// Sessions maps browser tokens to live dashboards.
type Sessions interface {
	Resolve(ctx context.Context, token string) (*Session, string, error)
	Touch(id string)
}

// EventLog exposes the fetch history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.FetchEvent, error)
}

type Service struct {
	Sessions
	EventLog
}

func NewService(repos *repository.Repository, sessions Sessions) *Service {
	return &Service{
		Sessions: sessions,
		EventLog: NewEventLogService(repos.EventRepo),
	}
}
