package models

// WeatherSnapshot is one successful current-weather observation for a city.
// It is replaced wholesale on every successful fetch, never patched.
type WeatherSnapshot struct {
	CityName               string  `json:"city_name"`
	CountryCode            string  `json:"country_code"`
	Description            string  `json:"description"`
	IconID                 string  `json:"icon_id,omitempty"`
	TemperatureC           float64 `json:"temperature_c"`  // °C
	FeelsLikeC             float64 `json:"feels_like_c"`   // °C
	HumidityPct            int     `json:"humidity_pct"`   // 0..100
	WindSpeedMps           float64 `json:"wind_speed_mps"` // m/s
	ObservedAtEpochSeconds int64   `json:"observed_at"`    // unix seconds
}
