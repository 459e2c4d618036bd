package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/resilience"
	"go.uber.org/zap"
)

// ResilientClient wraps a PushClient with circuit breaker and retry logic
type ResilientClient struct {
	client  PushClient
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilientClient wraps client. A nil breaker gets the FCM defaults.
func NewResilientClient(client PushClient, breaker *resilience.CircuitBreaker) *ResilientClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "firebase-fcm",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			IsSuccessful:     countsAsSuccess,
		}, resilience.GracefulDegradation("firebase-fcm"))
	}

	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.MaxAttempts = 3
	retryConfig.InitialBackoff = 1 * time.Second
	retryConfig.MaxBackoff = 10 * time.Second
	retryConfig.RetryableChecker = isRetryable

	return &ResilientClient{
		client:  client,
		breaker: breaker,
		retry:   retryConfig,
	}
}

// Send delivers to one device with retry and circuit breaker
func (r *ResilientClient) Send(ctx context.Context, token string, msg *Message) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.client.Send(ctx, token, msg)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send push notification",
			zap.Error(err),
			zap.String("token", maskToken(token)),
			zap.String("title", msg.Title),
		)
		return "", err
	}
	return result.(string), nil
}

// SendMulticast delivers to several devices with retry and circuit breaker
func (r *ResilientClient) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*BatchResult, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.client.SendMulticast(ctx, tokens, msg)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send multicast notification",
			zap.Error(err),
			zap.Int("token_count", len(tokens)),
		)
		return nil, err
	}

	batch := result.(*BatchResult)
	logger.InfoContext(ctx, "sent multicast notification",
		zap.Int("success_count", batch.SuccessCount),
		zap.Int("failure_count", batch.FailureCount),
	)
	return batch, nil
}

// SendTopic delivers to a topic with retry and circuit breaker
func (r *ResilientClient) SendTopic(ctx context.Context, topic string, msg *Message) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.client.SendTopic(ctx, topic, msg)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send topic notification",
			zap.Error(err),
			zap.String("topic", topic),
		)
		return "", err
	}

	logger.DebugContext(ctx, "sent topic notification",
		zap.String("message_id", result.(string)),
		zap.String("topic", topic),
	)
	return result.(string), nil
}

// SubscribeToTopic subscribes tokens with retry and circuit breaker
func (r *ResilientClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	_, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return nil, r.client.SubscribeToTopic(ctx, tokens, topic)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to subscribe to topic",
			zap.Error(err),
			zap.String("topic", topic),
		)
	}
	return err
}

// UnsubscribeFromTopic unsubscribes tokens with retry and circuit breaker
func (r *ResilientClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	_, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return nil, r.client.UnsubscribeFromTopic(ctx, tokens, topic)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to unsubscribe from topic",
			zap.Error(err),
			zap.String("topic", topic),
		)
	}
	return err
}

// countsAsSuccess keeps bad tokens from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil || IsPermanent(err)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return !IsPermanent(err)
}

// maskToken masks an FCM token for logging (first/last 4 chars)
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
