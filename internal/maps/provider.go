package maps

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoRoute means the provider found no route between the endpoints.
	ErrNoRoute = errors.New("no route found")
	// ErrInvalidRequest means the provider rejected the request itself.
	ErrInvalidRequest = errors.New("invalid directions request")
	// ErrNoProviders is returned when a service is built without providers.
	ErrNoProviders = errors.New("no directions providers configured")
)

// DirectionsProvider defines the interface for directions backends
type DirectionsProvider interface {
	GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error)
	HealthCheck(ctx context.Context) error
	Name() Provider
}

// ProviderError is a non-OK status returned in a provider's response body.
type ProviderError struct {
	Provider Provider
	Status   string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s directions: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s directions: %s: %s", e.Provider, e.Status, e.Message)
}

// Unwrap maps provider statuses onto the package sentinels.
func (e *ProviderError) Unwrap() error {
	switch e.Status {
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNoRoute
	case "INVALID_REQUEST", "MAX_WAYPOINTS_EXCEEDED", "MAX_ROUTE_LENGTH_EXCEEDED":
		return ErrInvalidRequest
	}
	return nil
}

// ProviderConfig holds configuration for a directions provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Config holds the maps service configuration
type Config struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	// AllowStraightLine returns a two-point approximate route when every
	// provider fails instead of an error.
	AllowStraightLine bool
}

// DefaultConfig returns sensible defaults for maps configuration
func DefaultConfig() Config {
	return Config{
		CacheEnabled:      true,
		CacheTTL:          5 * time.Minute,
		AllowStraightLine: true,
	}
}
