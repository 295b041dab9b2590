package weather

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weather_dashboard/internal/models"
)

// DefaultBaseURL is the OpenWeatherMap current-weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const (
	unitsMetric     = "metric"
	maxErrorBodyLen = 1 << 16 // 64 KB
)

// Config holds the client settings.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout of 0 leaves the request bounded only by ctx.
	Timeout time.Duration
}

// Client fetches current conditions for a city. Every call is a fresh request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client; a nil httpClient gets a default one using cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:    base,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}
}

// owmResponse is the subset of the provider payload the dashboard uses.
type owmResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

type owmErrorBody struct {
	Message string `json:"message"`
}

// FetchWeather issues one GET for cityName and maps the response to a snapshot.
func (c *Client) FetchWeather(ctx context.Context, cityName string) (models.WeatherSnapshot, error) {
	if c.apiKey == "" {
		return models.WeatherSnapshot{}, &ConfigError{Msg: "missing weather API key: set WEATHER_API_KEY"}
	}

	// Errors from here on must not quote the request URL: it carries the key.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(cityName), nil)
	if err != nil {
		return models.WeatherSnapshot{}, &ConfigError{Msg: "invalid weather base URL"}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.WeatherSnapshot{}, &NetworkError{Err: stripURL(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.WeatherSnapshot{}, providerError(resp)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.WeatherSnapshot{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    "invalid response from weather provider",
		}
	}
	return toSnapshot(body), nil
}

// requestURL percent-encodes the city (spaces as %20, like encodeURIComponent).
func (c *Client) requestURL(city string) string {
	q := strings.ReplaceAll(url.QueryEscape(city), "+", "%20")
	return c.baseURL +
		"?q=" + q +
		"&appid=" + url.QueryEscape(c.apiKey) +
		"&units=" + unitsMetric
}

// stripURL drops the *url.Error wrapper, whose text is the full request URL.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

func providerError(resp *http.Response) *ProviderError {
	pe := &ProviderError{StatusCode: resp.StatusCode, Message: defaultProviderMessage}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if err != nil || len(raw) == 0 {
		return pe
	}
	var body owmErrorBody
	if json.Unmarshal(raw, &body) == nil && strings.TrimSpace(body.Message) != "" {
		pe.Message = body.Message
	}
	return pe
}

func toSnapshot(b owmResponse) models.WeatherSnapshot {
	s := models.WeatherSnapshot{
		CityName:               b.Name,
		CountryCode:            b.Sys.Country,
		TemperatureC:           b.Main.Temp,
		FeelsLikeC:             b.Main.FeelsLike,
		HumidityPct:            b.Main.Humidity,
		WindSpeedMps:           b.Wind.Speed,
		ObservedAtEpochSeconds: b.Dt,
	}
	if len(b.Weather) > 0 {
		s.Description = b.Weather[0].Description
		s.IconID = b.Weather[0].Icon
	}
	return s
}
