package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// RetryConfig defines the configuration for retry behavior
type RetryConfig struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// EnableJitter applies full jitter: a random delay in [0, backoff).
	EnableJitter bool
	// RetryableErrors, when set, is the allow-list checked with errors.Is.
	RetryableErrors []error
	// RetryableChecker takes precedence over RetryableErrors.
	RetryableChecker func(error) bool
}

// DefaultRetryConfig returns the retry policy used for most upstream calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// InteractiveRetryConfig keeps total latency low for calls a user is waiting on
// (directions while navigating, scan predictions).
func InteractiveRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// Retry executes the given operation with exponential backoff retry logic
func Retry(ctx context.Context, config RetryConfig, operation Operation) (interface{}, error) {
	return RetryWithName(ctx, config, operation, "unknown")
}

// RetryWithName runs operation until it succeeds, returns a non-retryable
// error, or runs out of attempts. Metrics are labelled with operationName.
func RetryWithName(ctx context.Context, config RetryConfig, operation Operation, operationName string) (result interface{}, err error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	log := logger.WithContext(ctx).With(zap.String("operation", operationName))
	started := time.Now()
	defer func() {
		RecordRetryOperation(operationName, time.Since(started).Seconds(), err == nil)
	}()

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		result, err = operation(ctx)
		RecordRetryAttempt(operationName, err == nil)
		if err == nil {
			if attempt > 1 {
				log.Info("operation recovered", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !shouldRetry(err, config) {
			return nil, err
		}
		if attempt >= config.MaxAttempts {
			log.Warn("retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			return nil, err
		}

		wait := calculateBackoff(attempt, config)
		log.Debug("backing off", zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// RetryWithBreaker retries operation, routing every attempt through breaker.
func RetryWithBreaker(ctx context.Context, config RetryConfig, breaker *CircuitBreaker, operation Operation) (interface{}, error) {
	return RetryWithName(ctx, config, func(ctx context.Context) (interface{}, error) {
		return breaker.Execute(ctx, operation)
	}, breaker.Name())
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt-1))
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if config.EnableJitter && duration > 0 {
		duration = time.Duration(rand.Int63n(int64(duration)))
	}
	return duration
}

func shouldRetry(err error, config RetryConfig) bool {
	if err == nil {
		return false
	}

	if config.RetryableChecker != nil {
		return config.RetryableChecker(err)
	}

	if len(config.RetryableErrors) > 0 {
		for _, retryableErr := range config.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	// Retrying into an open breaker or a dead context only burns the budget.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return true
}

// IsRetryableHTTPStatus reports whether an upstream status code is worth retrying.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
