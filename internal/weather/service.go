package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pal-ai/gateway/pkg/cache"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/resilience"
	"github.com/pal-ai/gateway/pkg/tracing"
	"go.uber.org/zap"
)

// Service caches weather per ~1 km cell and guards the upstream with a breaker.
type Service struct {
	provider Provider
	cache    *cache.Manager
	breaker  *resilience.CircuitBreaker
	ttl      time.Duration
}

// NewService creates a weather service. cache and breaker may be nil.
func NewService(provider Provider, cacheManager *cache.Manager, breaker *resilience.CircuitBreaker, ttl time.Duration) *Service {
	return &Service{provider: provider, cache: cacheManager, breaker: breaker, ttl: ttl}
}

// Current returns the weather for lat,lng. Nearby coordinates share a cached
// report.
func (s *Service) Current(ctx context.Context, lat, lng float64) (*Report, error) {
	lat, lng = cache.RoundCoordinate(lat, 2), cache.RoundCoordinate(lng, 2)
	key := cacheKey(lat, lng)
	tracing.AnnotateLocation(ctx, lat, lng)

	var cached Report
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		cached.CacheHit = true
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.WarnContext(ctx, "weather cache read failed", zap.Error(err))
	}

	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.provider.Current(ctx, lat, lng)
	})
	if err != nil {
		return nil, err
	}

	report := result.(*Report)
	s.cache.SetQuietly(ctx, key, report, s.ttl)
	return report, nil
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("weather:%.2f:%.2f", lat, lng)
}
