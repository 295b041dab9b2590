package models

// DashboardState is what a single dashboard currently shows.
type DashboardState struct {
	CurrentCityName string           `json:"current_city"`
	Snapshot        *WeatherSnapshot `json:"snapshot,omitempty"` // nil until first success
	IsLoading       bool             `json:"is_loading"`
	ErrorMessage    string           `json:"error,omitempty"` // empty means no error
}

// Clone returns a copy that does not share the snapshot pointer.
func (s DashboardState) Clone() DashboardState {
	out := s
	if s.Snapshot != nil {
		snap := *s.Snapshot
		out.Snapshot = &snap
	}
	return out
}
