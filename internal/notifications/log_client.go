package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// LogClient stands in for FCM when push is disabled. It only logs.
type LogClient struct{}

// Send logs a device notification
func (LogClient) Send(ctx context.Context, token string, msg *Message) (string, error) {
	logger.InfoContext(ctx, "push disabled, notification not sent",
		zap.String("token", maskToken(token)),
		zap.String("title", msg.Title),
	)
	return "log-" + uuid.NewString(), nil
}

// SendMulticast logs a multicast notification
func (LogClient) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*BatchResult, error) {
	logger.InfoContext(ctx, "push disabled, multicast not sent",
		zap.Int("token_count", len(tokens)),
		zap.String("title", msg.Title),
	)
	return &BatchResult{SuccessCount: len(tokens)}, nil
}

// SendTopic logs a topic notification
func (LogClient) SendTopic(ctx context.Context, topic string, msg *Message) (string, error) {
	logger.InfoContext(ctx, "push disabled, topic notification not sent",
		zap.String("topic", topic),
		zap.String("title", msg.Title),
	)
	return "log-" + uuid.NewString(), nil
}

// SubscribeToTopic logs a subscription
func (LogClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	logger.DebugContext(ctx, "push disabled, subscribe skipped", zap.String("topic", topic))
	return nil
}

// UnsubscribeFromTopic logs an unsubscription
func (LogClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	logger.DebugContext(ctx, "push disabled, unsubscribe skipped", zap.String("topic", topic))
	return nil
}
