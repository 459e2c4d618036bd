package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pal-ai/gateway/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAndReturnsOpenError(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-breaker",
		Timeout:          50 * time.Millisecond,
		Interval:         50 * time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}, nil)

	ctx := context.Background()
	failingOp := func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(ctx, failingOp)
		require.Error(t, err, "iteration %d", i)
	}

	assert.False(t, breaker.Allow())

	_, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerPassesThroughOnSuccess(t *testing.T) {
	breaker := NewCircuitBreaker(BuildSettings("success-breaker", 1, 1, 5, 1), nil)

	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return "response", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "response", result)
	assert.Equal(t, "success-breaker", breaker.Name())
}

func TestCircuitBreakerIgnoresUnsuccessfulExclusions(t *testing.T) {
	clientErr := errors.New("zero results")
	breaker := NewCircuitBreaker(Settings{
		Name:             "exclusion-breaker",
		Timeout:          time.Second,
		FailureThreshold: 1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, clientErr)
		},
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
			return nil, clientErr
		})
		assert.ErrorIs(t, err, clientErr)
	}
	assert.True(t, breaker.Allow())
}

func TestGracefulDegradationFallback(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "weather-api",
		Timeout:          time.Second,
		FailureThreshold: 1,
	}, GracefulDegradation("weather-api"))

	_, _ = breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return nil, errors.New("503")
	})

	_, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return "unreachable", nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "weather-api unavailable")
}

func TestNilBreakerExecutesDirectly(t *testing.T) {
	var breaker *CircuitBreaker
	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, breaker.Allow())
}

func TestFromConfig(t *testing.T) {
	cfg := config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		TimeoutSeconds:   30,
		IntervalSeconds:  60,
		ServiceOverrides: map[string]config.CircuitBreakerSettings{
			"weather": {FailureThreshold: 1},
		},
	}

	breaker := FromConfig(cfg, "weather", nil)
	require.NotNil(t, breaker)

	_, err := breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("upstream down")
	})
	require.Error(t, err)

	_, err = breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, breaker.Allow())

	cfg.Enabled = false
	assert.Nil(t, FromConfig(cfg, "weather", nil))
}
