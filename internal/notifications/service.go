package notifications

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrEmptyToken  = errors.New("push token is required")
	ErrEmptyUserID = errors.New("user id is required")
)

// FCM topic names allow [a-zA-Z0-9-_.~%]
var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\-_.~%]`)

// Service routes notifications to per-user and broadcast topics
type Service struct {
	client         PushClient
	broadcastTopic string
}

// NewService creates a notification service
func NewService(client PushClient, broadcastTopic string) *Service {
	return &Service{client: client, broadcastTopic: broadcastTopic}
}

// UserTopic is the topic a user's devices are subscribed to
func UserTopic(userID string) string {
	return "user-" + topicUnsafe.ReplaceAllString(strings.TrimSpace(userID), "_")
}

// BroadcastTopic returns the announcements topic
func (s *Service) BroadcastTopic() string {
	return s.broadcastTopic
}

// RegisterDevice subscribes token to the user topic and the broadcast topic
func (s *Service) RegisterDevice(ctx context.Context, userID, token string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if token == "" {
		return ErrEmptyToken
	}

	tokens := []string{token}
	if err := s.client.SubscribeToTopic(ctx, tokens, UserTopic(userID)); err != nil {
		return fmt.Errorf("subscribe user topic: %w", err)
	}
	if s.broadcastTopic != "" {
		if err := s.client.SubscribeToTopic(ctx, tokens, s.broadcastTopic); err != nil {
			return fmt.Errorf("subscribe broadcast topic: %w", err)
		}
	}

	logger.InfoContext(ctx, "registered push device", zap.String("user_id", userID), zap.String("token", maskToken(token)))
	return nil
}

// UnregisterDevice removes token from both topics. Both unsubscribes are
// attempted even when the first fails.
func (s *Service) UnregisterDevice(ctx context.Context, userID, token string) error {
	if token == "" {
		return nil
	}

	tokens := []string{token}
	var errs []error
	if userID != "" {
		if err := s.client.UnsubscribeFromTopic(ctx, tokens, UserTopic(userID)); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe user topic: %w", err))
		}
	}
	if s.broadcastTopic != "" {
		if err := s.client.UnsubscribeFromTopic(ctx, tokens, s.broadcastTopic); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe broadcast topic: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NotifyUser sends msg to every device of userID
func (s *Service) NotifyUser(ctx context.Context, userID string, msg *Message) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	id, err := s.client.SendTopic(ctx, UserTopic(userID), msg)
	recordSend("user", err)
	return id, err
}

// Broadcast sends msg to every registered device
func (s *Service) Broadcast(ctx context.Context, msg *Message) (string, error) {
	id, err := s.client.SendTopic(ctx, s.broadcastTopic, msg)
	recordSend("broadcast", err)
	if err == nil {
		logger.InfoContext(ctx, "broadcast sent", zap.String("topic", s.broadcastTopic), zap.String("message_id", id))
	}
	return id, err
}
