package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pal-ai/gateway/pkg/cache"
	"github.com/pal-ai/gateway/pkg/config"
	"github.com/pal-ai/gateway/pkg/geo"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/polyline"
	"github.com/pal-ai/gateway/pkg/resilience"
	"go.uber.org/zap"
)

// Average speeds used to estimate straight-line durations.
var straightLineSpeedKmh = map[TravelMode]float64{
	ModeDriving:   30,
	ModeBicycling: 12,
	ModeWalking:   4.5,
}

// Service provides directions with caching, provider fallback and circuit
// breaking.
type Service struct {
	providers []DirectionsProvider
	breakers  map[Provider]*resilience.CircuitBreaker
	cache     *cache.Manager
	config    Config
}

// NewService creates a new maps service. The first provider is the primary;
// the rest are tried in order when it fails.
func NewService(cfg Config, cacheManager *cache.Manager, breakerCfg config.CircuitBreakerConfig, providers ...DirectionsProvider) (*Service, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	s := &Service{
		providers: providers,
		breakers:  make(map[Provider]*resilience.CircuitBreaker, len(providers)),
		cache:     cacheManager,
		config:    cfg,
	}

	for _, p := range providers {
		s.breakers[p.Name()] = resilience.FromConfig(breakerCfg, "maps-"+string(p.Name()), countsAsSuccess)
	}

	return s, nil
}

// countsAsSuccess keeps caller mistakes and cancellations from tripping a
// provider's breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNoRoute) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, context.Canceled)
}

// GetRoute calculates a route with caching and fallback support
func (s *Service) GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	cacheKey := routeCacheKey(req)
	if s.config.CacheEnabled {
		var cached RouteResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			cached.CacheHit = true
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.WarnContext(ctx, "route cache read failed", zap.Error(err))
		}
	}

	resp, err := s.executeWithFallback(ctx, req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrNoRoute) || errors.Is(err, ErrInvalidRequest) || !s.config.AllowStraightLine {
			return nil, err
		}

		logger.WarnContext(ctx, "All directions providers failed, using straight line", zap.Error(err))
		return straightLineRoute(req), nil
	}

	if s.config.CacheEnabled {
		s.cache.SetQuietly(ctx, cacheKey, resp, s.config.CacheTTL)
	}

	return resp, nil
}

// DecodePolyline decodes a Google encoded polyline at the given precision.
// A zero precision means the standard 5 digits.
func (s *Service) DecodePolyline(encoded string, precision int) ([]Coordinate, error) {
	if precision == 0 {
		return polyline.Decode(encoded)
	}
	return polyline.DecodeWithPrecision(encoded, precision)
}

// HealthCheck probes every provider
func (s *Service) HealthCheck(ctx context.Context) []ProviderHealth {
	results := make([]ProviderHealth, 0, len(s.providers))
	for _, p := range s.providers {
		health := ProviderHealth{Provider: p.Name(), Healthy: true}
		if err := p.HealthCheck(ctx); err != nil {
			health.Healthy = false
			health.Error = err.Error()
		}
		results = append(results, health)
	}
	return results
}

// GetPrimaryProvider returns the name of the primary provider
func (s *Service) GetPrimaryProvider() Provider {
	return s.providers[0].Name()
}

// executeWithFallback tries each provider in order. Answers that are final for
// the request (no route, invalid request, cancelled caller) stop the chain.
func (s *Service) executeWithFallback(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	var lastErr error
	for _, provider := range s.providers {
		result, err := s.breakers[provider.Name()].Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return provider.GetRoute(ctx, req)
		})
		if err == nil {
			return result.(*RouteResponse), nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNoRoute) || errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}

		lastErr = err
		logger.WarnContext(ctx, "Directions provider failed",
			zap.Error(err),
			zap.String("provider", string(provider.Name())),
		)
	}

	return nil, fmt.Errorf("all directions providers failed: %w", lastErr)
}

// straightLineRoute approximates a route as the segment between the two
// endpoints so the map can still draw something.
func straightLineRoute(req *RouteRequest) *RouteResponse {
	path := []Coordinate{req.Origin, req.Destination}
	meters := geo.DistanceMeters(req.Origin, req.Destination)

	speed, ok := straightLineSpeedKmh[req.Mode]
	if !ok {
		speed = straightLineSpeedKmh[ModeDriving]
	}
	duration := geo.EstimateDuration(meters/1000, speed)

	return &RouteResponse{
		Routes: []Route{{
			Summary:         "Straight line",
			EncodedPolyline: polyline.Encode(path),
			Coordinates:     path,
			DistanceText:    geo.FormatDistance(meters),
			DistanceMeters:  int(meters),
			DurationText:    geo.FormatDuration(duration),
			DurationSeconds: int(duration / time.Second),
			Warnings:        []string{"Directions unavailable; showing straight-line distance."},
		}},
		Provider:    ProviderStraightLine,
		RequestedAt: time.Now(),
		Approximate: true,
	}
}

func routeCacheKey(req *RouteRequest) string {
	mode := req.Mode
	if mode == "" {
		mode = ModeDriving
	}
	data := fmt.Sprintf("%.5f,%.5f:%.5f,%.5f:%s:%t:%t:%t:%t",
		req.Origin.Latitude, req.Origin.Longitude,
		req.Destination.Latitude, req.Destination.Longitude,
		mode, req.Alternatives, req.AvoidTolls, req.AvoidHighways, req.AvoidFerries,
	)
	return "maps:route:" + cache.HashKey(data)
}
