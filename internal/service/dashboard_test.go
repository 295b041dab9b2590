package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weather_dashboard/internal/models"
	"weather_dashboard/internal/repository"
)

// fakeFetcher records every city it is asked for and answers via fn.
type fakeFetcher struct {
	mu     sync.Mutex
	cities []string
	fn     func(ctx context.Context, city string) (models.WeatherSnapshot, error)
}

func (f *fakeFetcher) FetchWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	f.mu.Lock()
	f.cities = append(f.cities, city)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return models.WeatherSnapshot{CityName: city, TemperatureC: 21.6, ObservedAtEpochSeconds: 1700000000}, nil
	}
	return fn(ctx, city)
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cities...)
}

// memSettings is an in-memory SettingsRepo.
type memSettings struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newMemSettings() *memSettings { return &memSettings{values: map[string]string{}} }

func (m *memSettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memSettings) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

// recordingEvents is an EventRepo that keeps appended events.
type recordingEvents struct {
	mu     sync.Mutex
	events []models.FetchEvent
}

func (r *recordingEvents) Append(_ context.Context, e models.FetchEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingEvents) List(context.Context, repository.EventFilter) ([]models.FetchEvent, error) {
	return nil, nil
}

func (r *recordingEvents) all() []models.FetchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.FetchEvent(nil), r.events...)
}

func newTestDashboard(t *testing.T, f *fakeFetcher, s *memSettings, cfg DashboardConfig) *Dashboard {
	t.Helper()
	d := NewDashboard(cfg, DashboardDeps{Fetcher: f, Settings: s})
	t.Cleanup(d.Deactivate)
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDashboard_Activate_DefaultCityFetchedOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	s := newMemSettings()
	d := newTestDashboard(t, f, s, DashboardConfig{})

	d.Activate(context.Background())

	if got := f.calls(); len(got) != 1 || got[0] != DefaultCity {
		t.Fatalf("expected one fetch for %q, got %v", DefaultCity, got)
	}
	st := d.State()
	if st.CurrentCityName != DefaultCity || st.IsLoading || st.ErrorMessage != "" || st.Snapshot == nil {
		t.Fatalf("unexpected state after startup: %+v", st)
	}
	if s.value(LastCityKey) != DefaultCity {
		t.Fatalf("persisted city = %q", s.value(LastCityKey))
	}
}

func TestDashboard_Activate_UsesPersistedCity(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	s := newMemSettings()
	s.values[LastCityKey] = "  Oslo "
	d := newTestDashboard(t, f, s, DashboardConfig{})

	d.Activate(context.Background())

	if got := f.calls(); len(got) != 1 || got[0] != "Oslo" {
		t.Fatalf("expected one fetch for Oslo, got %v", got)
	}
}

func TestDashboard_Activate_StorageErrorFallsBackToDefault(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	s := newMemSettings()
	s.getErr = errors.New("disk gone")
	d := newTestDashboard(t, f, s, DashboardConfig{DefaultCity: "Rabat"})

	d.Activate(context.Background())

	if got := f.calls(); len(got) != 1 || got[0] != "Rabat" {
		t.Fatalf("expected fallback to configured default, got %v", got)
	}
}

func TestDashboard_Search(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		input     string
		wantFetch []string
		wantOK    bool
	}{
		{name: "plain city", input: "Paris", wantFetch: []string{"Paris"}, wantOK: true},
		{name: "trimmed", input: "  New York\t", wantFetch: []string{"New York"}, wantOK: true},
		{name: "empty is a no-op", input: "", wantFetch: nil, wantOK: false},
		{name: "whitespace is a no-op", input: "   \n", wantFetch: nil, wantOK: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeFetcher{}
			s := newMemSettings()
			d := newTestDashboard(t, f, s, DashboardConfig{})

			ok := d.Search(context.Background(), tc.input)
			if ok != tc.wantOK {
				t.Fatalf("Search returned %v, want %v", ok, tc.wantOK)
			}
			got := f.calls()
			if len(got) != len(tc.wantFetch) {
				t.Fatalf("fetches: got %v want %v", got, tc.wantFetch)
			}
			for i := range got {
				if got[i] != tc.wantFetch[i] {
					t.Fatalf("fetches: got %v want %v", got, tc.wantFetch)
				}
			}
			if tc.wantOK && s.value(LastCityKey) != tc.wantFetch[0] {
				t.Fatalf("persisted %q, want %q", s.value(LastCityKey), tc.wantFetch[0])
			}
			if !tc.wantOK && s.sets != 0 {
				t.Fatalf("no-op search must not persist anything")
			}
			if d.State().IsLoading {
				t.Fatalf("loading must be false after search")
			}
		})
	}
}

func TestDashboard_Search_FailureClearsSnapshot(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	s := newMemSettings()
	d := newTestDashboard(t, f, s, DashboardConfig{})

	d.Search(context.Background(), "Paris")
	if d.State().Snapshot == nil {
		t.Fatalf("expected a snapshot after success")
	}

	f.fn = func(context.Context, string) (models.WeatherSnapshot, error) {
		return models.WeatherSnapshot{}, errors.New("city not found")
	}
	d.Search(context.Background(), "Atlantis")

	st := d.State()
	if st.Snapshot != nil {
		t.Fatalf("snapshot must be cleared on failure")
	}
	if st.ErrorMessage != "city not found" {
		t.Fatalf("error = %q", st.ErrorMessage)
	}
	if st.IsLoading {
		t.Fatalf("loading must be false after failure")
	}
	if st.CurrentCityName != "Paris" {
		t.Fatalf("failed search must keep committed city, got %q", st.CurrentCityName)
	}
	if s.value(LastCityKey) != "Paris" {
		t.Fatalf("failed search must not persist, got %q", s.value(LastCityKey))
	}
}

func TestDashboard_Search_BlankErrorGetsFallbackMessage(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fn: func(context.Context, string) (models.WeatherSnapshot, error) {
		return models.WeatherSnapshot{}, errors.New("  ")
	}}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})

	d.Search(context.Background(), "X")
	if got := d.State().ErrorMessage; got != fallbackErrorMessage {
		t.Fatalf("error = %q, want %q", got, fallbackErrorMessage)
	}
}

func TestDashboard_Search_PersistErrorKeepsSuccess(t *testing.T) {
	t.Parallel()

	s := newMemSettings()
	s.setErr = errors.New("read-only")
	d := newTestDashboard(t, &fakeFetcher{}, s, DashboardConfig{})

	d.Search(context.Background(), "Lima")
	st := d.State()
	if st.ErrorMessage != "" || st.Snapshot == nil || st.CurrentCityName != "Lima" {
		t.Fatalf("storage failure must not surface: %+v", st)
	}
}

func TestDashboard_NonSilentFetch_PublishesLoadingThenResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := &fakeFetcher{fn: func(context.Context, string) (models.WeatherSnapshot, error) {
		<-release
		return models.WeatherSnapshot{CityName: "Paris"}, nil
	}}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})
	ch, unsubscribe := d.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		d.Search(context.Background(), "Paris")
		close(done)
	}()

	select {
	case st := <-ch:
		if !st.IsLoading || st.ErrorMessage != "" {
			t.Fatalf("expected loading state first, got %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no loading state published")
	}

	close(release)
	<-done

	st := <-ch
	if st.IsLoading || st.Snapshot == nil {
		t.Fatalf("expected final state, got %+v", st)
	}
}

func TestDashboard_Refresh(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})

	if d.Refresh(context.Background()) {
		t.Fatalf("refresh without a city must be a no-op")
	}
	if len(f.calls()) != 0 {
		t.Fatalf("no fetch expected")
	}

	d.Search(context.Background(), "Cairo")
	if !d.Refresh(context.Background()) {
		t.Fatalf("refresh with a city must run")
	}
	if got := f.calls(); len(got) != 2 || got[1] != "Cairo" {
		t.Fatalf("unexpected fetches %v", got)
	}
}

func TestDashboard_Refresh_IgnoresCanceledRequest(t *testing.T) {
	t.Parallel()

	var sawErr error
	f := &fakeFetcher{fn: func(ctx context.Context, city string) (models.WeatherSnapshot, error) {
		sawErr = ctx.Err()
		return models.WeatherSnapshot{CityName: city}, nil
	}}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Search(ctx, "Tunis")
	if sawErr != nil {
		t.Fatalf("manual fetch must not inherit request cancellation, got %v", sawErr)
	}
}

func TestDashboard_SilentFetch_NeverPublishesLoading(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := &fakeFetcher{}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})

	d.Search(context.Background(), "Paris")
	f.fn = func(context.Context, string) (models.WeatherSnapshot, error) {
		return models.WeatherSnapshot{}, errors.New("boom")
	}
	d.Refresh(context.Background())
	if st := d.State(); st.ErrorMessage != "boom" || st.CurrentCityName != "Paris" {
		t.Fatalf("precondition: want error state for Paris, got %+v", st)
	}

	ch, unsubscribe := d.Subscribe()
	defer unsubscribe()

	f.fn = func(context.Context, string) (models.WeatherSnapshot, error) {
		<-release
		return models.WeatherSnapshot{CityName: "Paris"}, nil
	}

	done := make(chan struct{})
	go func() {
		d.tick(context.Background())
		close(done)
	}()

	// While in flight the error stays visible and loading stays false.
	time.Sleep(20 * time.Millisecond)
	st := d.State()
	if st.IsLoading {
		t.Fatalf("silent fetch raised loading")
	}
	if st.ErrorMessage != "boom" {
		t.Fatalf("silent fetch pre-cleared the error: %q", st.ErrorMessage)
	}
	select {
	case st := <-ch:
		t.Fatalf("nothing should be published before completion, got %+v", st)
	default:
	}

	close(release)
	<-done

	st = <-ch
	if st.IsLoading || st.ErrorMessage != "" || st.Snapshot == nil {
		t.Fatalf("unexpected state after silent success: %+v", st)
	}
}

func TestDashboard_SilentFailure_SnapshotPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		keep         bool
		wantSnapshot bool
	}{
		{name: "default clears snapshot", keep: false, wantSnapshot: false},
		{name: "keep option retains snapshot", keep: true, wantSnapshot: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeFetcher{}
			d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{KeepSnapshotOnSilentFailure: tc.keep})

			d.Search(context.Background(), "Paris")
			f.fn = func(context.Context, string) (models.WeatherSnapshot, error) {
				return models.WeatherSnapshot{}, errors.New("rate limited")
			}
			d.tick(context.Background())

			st := d.State()
			if (st.Snapshot != nil) != tc.wantSnapshot {
				t.Fatalf("snapshot present=%v, want %v", st.Snapshot != nil, tc.wantSnapshot)
			}
			if st.ErrorMessage != "rate limited" || st.IsLoading {
				t.Fatalf("unexpected state %+v", st)
			}
		})
	}
}

func TestDashboard_TimerTicksSilentlyAndStopsOnDeactivate(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	d := NewDashboard(DashboardConfig{RefreshInterval: 10 * time.Millisecond}, DashboardDeps{Fetcher: f, Settings: newMemSettings()})
	ch, unsubscribe := d.Subscribe()
	defer unsubscribe()

	d.Activate(context.Background())
	waitFor(t, "timer ticks", func() bool { return len(f.calls()) >= 3 })

	d.Deactivate()
	n := len(f.calls())
	time.Sleep(50 * time.Millisecond)
	if got := len(f.calls()); got != n {
		t.Fatalf("fetches continued after deactivate: %d -> %d", n, got)
	}
	for _, c := range f.calls() {
		if c != DefaultCity {
			t.Fatalf("timer fetched %q", c)
		}
	}

	// drain: the final published state must not be loading
	select {
	case st := <-ch:
		if st.IsLoading {
			t.Fatalf("final state is loading")
		}
	default:
	}
}

func TestDashboard_TimerNoCityNoFetch(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})
	d.tick(context.Background())
	if len(f.calls()) != 0 {
		t.Fatalf("tick without a city must not fetch")
	}
}

func TestDashboard_RecordsEventsAndNotifiesCity(t *testing.T) {
	t.Parallel()

	ev := &recordingEvents{}
	f := &fakeFetcher{}
	d := NewDashboard(DashboardConfig{SessionID: "s1"}, DashboardDeps{Fetcher: f, Settings: newMemSettings(), Events: ev})
	t.Cleanup(d.Deactivate)

	var mu sync.Mutex
	var seen []string
	d.WatchCity(func(c string) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	d.Search(context.Background(), "Paris")
	d.Search(context.Background(), "Paris")
	f.fn = func(context.Context, string) (models.WeatherSnapshot, error) {
		return models.WeatherSnapshot{}, errors.New("nope")
	}
	d.Search(context.Background(), "Nowhere")

	events := ev.all()
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	if events[0].Type != models.EventFetchOK || events[2].Type != models.EventFetchFailed {
		t.Fatalf("unexpected types: %s, %s", events[0].Type, events[2].Type)
	}
	if events[2].Description != "nope" || events[2].SessionID != "s1" || events[2].City != "Nowhere" {
		t.Fatalf("unexpected failure event %+v", events[2])
	}
	meta, ok := events[0].Metadata.(map[string]any)
	if !ok || meta["trigger"] != triggerSearch || meta["silent"] != false {
		t.Fatalf("unexpected metadata %#v", events[0].Metadata)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "Paris" {
		t.Fatalf("city watchers should fire once per change, got %v", seen)
	}
}

func TestDashboard_LastWriteWins(t *testing.T) {
	t.Parallel()

	slow := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, city string) (models.WeatherSnapshot, error) {
		if city == "Slow" {
			<-slow
		}
		return models.WeatherSnapshot{CityName: city}, nil
	}}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})

	done := make(chan struct{})
	go func() {
		d.Search(context.Background(), "Slow")
		close(done)
	}()
	waitFor(t, "slow fetch in flight", func() bool { return len(f.calls()) == 1 })

	d.Search(context.Background(), "Fast")
	close(slow)
	<-done

	if got := d.State().CurrentCityName; got != "Slow" {
		t.Fatalf("last resolved fetch should win, got %q", got)
	}
}

func TestDashboard_CanceledSilentFetchLeavesState(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	d := newTestDashboard(t, f, newMemSettings(), DashboardConfig{})
	d.Search(context.Background(), "Paris")

	f.fn = func(ctx context.Context, _ string) (models.WeatherSnapshot, error) {
		return models.WeatherSnapshot{}, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.tick(ctx)

	st := d.State()
	if st.Snapshot == nil || st.ErrorMessage != "" || st.IsLoading {
		t.Fatalf("teardown must not surface as a failure: %+v", st)
	}
}
