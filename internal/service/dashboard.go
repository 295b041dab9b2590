package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"weather_dashboard/internal/logger"
	"weather_dashboard/internal/metrics"
	"weather_dashboard/internal/models"
	"weather_dashboard/internal/repository"
)

const (
	DefaultCity            = "Casablanca"
	DefaultRefreshInterval = 5 * time.Minute

	// LastCityKey is the settings key the committed city is persisted under.
	LastCityKey = "lastCity"

	fallbackErrorMessage = "Unable to fetch weather"
)

// What started a fetch; recorded in the fetch log.
const (
	triggerStartup = "startup"
	triggerSearch  = "search"
	triggerRefresh = "refresh"
	triggerTimer   = "timer"
)

type DashboardConfig struct {
	SessionID       string
	DefaultCity     string
	RefreshInterval time.Duration
	// KeepSnapshotOnSilentFailure leaves the last good card up when a
	// background refresh fails. Off by default: any failure blanks the card.
	KeepSnapshotOnSilentFailure bool
}

// DashboardDeps are the collaborators of a Dashboard. Events, Metrics and Log may be nil.
type DashboardDeps struct {
	Fetcher  Fetcher
	Settings repository.SettingsRepo
	Events   repository.EventRepo
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// Dashboard is the controller behind one dashboard view. It is the only
// writer of its DashboardState.
type Dashboard struct {
	cfg       DashboardConfig
	deps      DashboardDeps
	refresher *Refresher

	mu           sync.Mutex
	state        models.DashboardState
	subs         map[int]chan models.DashboardState
	nextSub      int
	cityWatchers []func(string)
}

var _ Controller = (*Dashboard)(nil)

func NewDashboard(cfg DashboardConfig, deps DashboardDeps) *Dashboard {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = DefaultCity
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	d := &Dashboard{
		cfg:  cfg,
		deps: deps,
		subs: make(map[int]chan models.DashboardState),
	}
	d.refresher = NewRefresher(cfg.RefreshInterval, d.tick)
	return d
}

// WatchCity registers fn to be called whenever the committed city changes.
func (d *Dashboard) WatchCity(fn func(city string)) {
	d.mu.Lock()
	d.cityWatchers = append(d.cityWatchers, fn)
	d.mu.Unlock()
}

// Activate seeds the city from storage (or the default), starts the
// refresh timer and runs the first fetch.
func (d *Dashboard) Activate(ctx context.Context) {
	city := d.loadLastCity(ctx)

	d.mu.Lock()
	d.state.CurrentCityName = city
	d.publishLocked()
	d.mu.Unlock()
	d.notifyCity(city)

	d.refresher.Start(ctx)

	if city != "" {
		d.fetch(ctx, city, false, triggerStartup)
	}
}

// Deactivate cancels the refresh timer. State stays readable.
func (d *Dashboard) Deactivate() {
	d.refresher.Stop()
}

// Search fetches the trimmed city. Blank input is ignored and returns false.
func (d *Dashboard) Search(ctx context.Context, city string) bool {
	city = strings.TrimSpace(city)
	if city == "" {
		return false
	}
	d.fetch(context.WithoutCancel(ctx), city, false, triggerSearch)
	return true
}

// Refresh re-fetches the current city. It returns false when no city is set.
func (d *Dashboard) Refresh(ctx context.Context) bool {
	city := d.State().CurrentCityName
	if city == "" {
		return false
	}
	d.fetch(context.WithoutCancel(ctx), city, false, triggerRefresh)
	return true
}

func (d *Dashboard) tick(ctx context.Context) {
	city := d.State().CurrentCityName
	if city == "" {
		return
	}
	d.fetch(ctx, city, true, triggerTimer)
}

// State returns a copy of the current state.
func (d *Dashboard) State() models.DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Subscribe streams state changes. A slow reader only ever sees the latest state.
// The returned func unsubscribes; the channel is never closed.
func (d *Dashboard) Subscribe() (<-chan models.DashboardState, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSub
	d.nextSub++
	ch := make(chan models.DashboardState, 1)
	d.subs[id] = ch

	return ch, func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// fetch runs one attempt. Silent attempts skip the loading/error reset up
// front; completion handling is shared. Concurrent attempts are not
// coordinated: whichever resolves last wins.
func (d *Dashboard) fetch(ctx context.Context, city string, silent bool, trigger string) {
	if !silent {
		d.mu.Lock()
		d.state.IsLoading = true
		d.state.ErrorMessage = ""
		d.publishLocked()
		d.mu.Unlock()
	}

	start := time.Now()
	snap, err := d.deps.Fetcher.FetchWeather(ctx, city)
	elapsed := time.Since(start)

	d.mu.Lock()
	if err != nil && ctx.Err() != nil {
		// torn down mid-flight: not a provider outcome, leave the card alone
		d.state.IsLoading = false
		d.publishLocked()
		d.mu.Unlock()
		return
	}
	cityChanged := false
	if err == nil {
		d.state.Snapshot = &snap
		d.state.ErrorMessage = ""
		cityChanged = d.state.CurrentCityName != city
		d.state.CurrentCityName = city
	} else {
		if !silent || !d.cfg.KeepSnapshotOnSilentFailure {
			d.state.Snapshot = nil
		}
		d.state.ErrorMessage = errorMessage(err)
	}
	d.state.IsLoading = false
	d.publishLocked()
	d.mu.Unlock()

	if err == nil {
		d.persistCity(ctx, city)
		if cityChanged {
			d.refresher.Reset()
			d.notifyCity(city)
		}
	} else if d.deps.Log != nil {
		kv := []interface{}{"session", d.cfg.SessionID, "city", city, "silent", silent, "err", err}
		if cause := errors.Unwrap(err); cause != nil {
			kv = append(kv, "cause", cause)
		}
		d.deps.Log.Infow("weather_fetch_failed", kv...)
	}

	d.deps.Metrics.ObserveFetch(silent, err, elapsed)
	d.record(ctx, city, silent, trigger, elapsed, err)
}

func (d *Dashboard) loadLastCity(ctx context.Context) string {
	if d.deps.Settings != nil {
		city, err := d.deps.Settings.Get(ctx, LastCityKey)
		if err != nil {
			if d.deps.Log != nil {
				d.deps.Log.Errorw("last_city_load_failed", "session", d.cfg.SessionID, "err", err)
			}
		} else if city = strings.TrimSpace(city); city != "" {
			return city
		}
	}
	return d.cfg.DefaultCity
}

func (d *Dashboard) persistCity(ctx context.Context, city string) {
	if d.deps.Settings == nil {
		return
	}
	if err := d.deps.Settings.Set(ctx, LastCityKey, city); err != nil && d.deps.Log != nil {
		d.deps.Log.Errorw("last_city_save_failed", "session", d.cfg.SessionID, "city", city, "err", err)
	}
}

func (d *Dashboard) record(ctx context.Context, city string, silent bool, trigger string, elapsed time.Duration, fetchErr error) {
	if d.deps.Events == nil {
		return
	}
	ev := models.FetchEvent{
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventFetchOK,
		SessionID:   d.cfg.SessionID,
		City:        city,
		Description: "Weather updated for " + city,
		Metadata: map[string]any{
			"silent":      silent,
			"trigger":     trigger,
			"duration_ms": elapsed.Milliseconds(),
		},
	}
	if fetchErr != nil {
		ev.Type = models.EventFetchFailed
		ev.Description = errorMessage(fetchErr)
	}
	if err := d.deps.Events.Append(ctx, ev); err != nil && d.deps.Log != nil {
		d.deps.Log.Errorw("fetch_event_append_failed", "session", d.cfg.SessionID, "err", err)
	}
}

// publishLocked pushes the current state to every subscriber. Caller holds d.mu.
func (d *Dashboard) publishLocked() {
	if len(d.subs) == 0 {
		return
	}
	st := d.state.Clone()
	for _, ch := range d.subs {
		select {
		case <-ch: // drop the stale value
		default:
		}
		ch <- st
	}
}

func (d *Dashboard) notifyCity(city string) {
	d.mu.Lock()
	watchers := append([]func(string){}, d.cityWatchers...)
	d.mu.Unlock()
	for _, fn := range watchers {
		fn(city)
	}
}

// errorMessage converts any fetch error into the text shown to the user.
func errorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallbackErrorMessage
}
