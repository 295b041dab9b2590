package models

import "time"

// Fetch event types.
const (
	EventFetchOK     = "FETCH_OK"
	EventFetchFailed = "FETCH_FAILED"
)

// FetchEvent is a single fetch-log entry.
type FetchEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // FETCH_OK | FETCH_FAILED
	SessionID   string    `json:"session_id"`
	City        string    `json:"city"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
