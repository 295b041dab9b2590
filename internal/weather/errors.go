package weather

import (
	"errors"
	"net/http"
)

// defaultProviderMessage is shown when the provider gives no usable message.
const defaultProviderMessage = "Failed to fetch"

// ErrCityNotFound matches a ProviderError for an unknown city (HTTP 404).
var ErrCityNotFound = errors.New("city not found")

// ConfigError reports a missing or unusable client configuration.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// ProviderError is a non-2xx response from the weather provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return defaultProviderMessage
	}
	return e.Message
}

// Is lets errors.Is(err, ErrCityNotFound) match 404 responses.
func (e *ProviderError) Is(target error) bool {
	return target == ErrCityNotFound && e.StatusCode == http.StatusNotFound
}

// NetworkError wraps a transport-level failure. Its text is fixed so it is
// safe to show; the cause stays reachable through Unwrap for logging.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return defaultProviderMessage }

func (e *NetworkError) Unwrap() error { return e.Err }
