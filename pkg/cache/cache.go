package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pal-ai/gateway/pkg/logger"
	redisclient "github.com/pal-ai/gateway/pkg/redis"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

// Manager stores JSON values in Redis. A nil redis client turns every call
// into a miss so services run without a cache in tests and local setups.
type Manager struct {
	redis  redisclient.ClientInterface
	prefix string
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface, prefix string) *Manager {
	return &Manager{redis: redis, prefix: prefix}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	if m == nil || m.redis == nil {
		return ErrMiss
	}

	data, err := m.redis.GetString(ctx, m.prefix+key)
	if err != nil {
		if redisclient.IsNil(err) {
			return ErrMiss
		}
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m == nil || m.redis == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.SetWithExpiration(ctx, m.prefix+key, string(data), ttl)
}

// SetQuietly caches value and only logs failures; callers already hold the
// authoritative value.
func (m *Manager) SetQuietly(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := m.Set(ctx, key, value, ttl); err != nil {
		logger.WarnContext(ctx, "failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if m == nil || m.redis == nil || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = m.prefix + k
	}
	return m.redis.Delete(ctx, prefixed...)
}

// HashKey shortens an arbitrary cache key descriptor to a stable hex digest.
func HashKey(descriptor string) string {
	sum := sha256.Sum256([]byte(descriptor))
	return hex.EncodeToString(sum[:8])
}

// RoundCoordinate snaps a coordinate to the given number of decimal places so
// nearby requests share a cache entry.
func RoundCoordinate(value float64, decimals int) float64 {
	factor := math.Pow10(decimals)
	return math.Round(value*factor) / factor
}
