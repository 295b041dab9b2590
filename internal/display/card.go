// Package display turns dashboard state into ready-to-render values.
// Everything here is pure: no I/O, no clocks.
package display

import (
	"fmt"
	"math"
	"time"

	"weather_dashboard/internal/models"
)

const (
	iconURLFormat    = "https://openweathermap.org/img/wn/%s@2x.png"
	PlaceholderGlyph = "—"
	timeOfDayLayout  = "15:04:05"
	mpsToKmh         = 3.6
)

// Status line texts.
const (
	StatusLoading = "Loading…"
	StatusIdle    = "Enter a city and press Search"
	statusLastFmt = "Last: %s"
)

// Card is the rendered weather card.
type Card struct {
	CityName     string `json:"city_name"`
	CountryCode  string `json:"country_code"`
	Description  string `json:"description"`
	IconURL      string `json:"icon_url,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"` // shown when there is no icon
	TemperatureC int    `json:"temperature_c"`
	FeelsLikeC   int    `json:"feels_like_c"`
	HumidityPct  int    `json:"humidity_pct"`
	WindKmh      int    `json:"wind_kmh"`
	ObservedAt   string `json:"observed_at"`
}

// ErrorBanner is the rendered error message.
type ErrorBanner struct {
	Message string `json:"message"`
}

// View is everything the page needs for one dashboard state.
type View struct {
	City       string       `json:"city"`
	IsLoading  bool         `json:"is_loading"`
	CanRefresh bool         `json:"can_refresh"`
	Status     string       `json:"status"`
	Error      *ErrorBanner `json:"error,omitempty"`
	Card       *Card        `json:"card,omitempty"`
}

// RoundHalfUp rounds to the nearest integer, halves toward +Inf (21.5 -> 22, -2.5 -> -2).
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// WindKmh converts m/s to km/h rounded for display.
func WindKmh(mps float64) int {
	return RoundHalfUp(mps * mpsToKmh)
}

// IconURL returns the provider icon URL, or "" when no icon id is known.
func IconURL(iconID string) string {
	if iconID == "" {
		return ""
	}
	return fmt.Sprintf(iconURLFormat, iconID)
}

// FormatObservedAt formats an epoch as a time of day in loc; 0 renders the placeholder.
func FormatObservedAt(epochSeconds int64, loc *time.Location) string {
	if epochSeconds == 0 {
		return PlaceholderGlyph
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(epochSeconds, 0).In(loc).Format(timeOfDayLayout)
}

// RenderCard renders a snapshot; nil in, nil out.
func RenderCard(s *models.WeatherSnapshot, loc *time.Location) *Card {
	if s == nil {
		return nil
	}
	c := &Card{
		CityName:     s.CityName,
		CountryCode:  s.CountryCode,
		Description:  s.Description,
		IconURL:      IconURL(s.IconID),
		TemperatureC: RoundHalfUp(s.TemperatureC),
		FeelsLikeC:   RoundHalfUp(s.FeelsLikeC),
		HumidityPct:  s.HumidityPct,
		WindKmh:      WindKmh(s.WindSpeedMps),
		ObservedAt:   FormatObservedAt(s.ObservedAtEpochSeconds, loc),
	}
	if c.IconURL == "" {
		c.Placeholder = PlaceholderGlyph
	}
	return c
}

// RenderError returns nil when there is nothing to show.
func RenderError(msg string) *ErrorBanner {
	if msg == "" {
		return nil
	}
	return &ErrorBanner{Message: msg}
}

// StatusLine mirrors the small status text next to the refresh button.
func StatusLine(st models.DashboardState, loc *time.Location) string {
	switch {
	case st.IsLoading:
		return StatusLoading
	case st.Snapshot != nil:
		return fmt.Sprintf(statusLastFmt, FormatObservedAt(st.Snapshot.ObservedAtEpochSeconds, loc))
	default:
		return StatusIdle
	}
}

// BuildView combines card, error banner and status for one state.
func BuildView(st models.DashboardState, loc *time.Location) View {
	return View{
		City:       st.CurrentCityName,
		IsLoading:  st.IsLoading,
		CanRefresh: !st.IsLoading && st.CurrentCityName != "",
		Status:     StatusLine(st, loc),
		Error:      RenderError(st.ErrorMessage),
		Card:       RenderCard(st.Snapshot, loc),
	}
}
