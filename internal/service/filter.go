package service

import "time"

// LogFilter supports fetch history filtering by time range, type and session.
type LogFilter struct {
	From      time.Time // inclusive; zero means no lower bound
	To        time.Time // inclusive; zero means no upper bound
	Type      string    // "", "FETCH_OK", "FETCH_FAILED"
	SessionID string    // "" lists every session
}
