package notifications

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const androidChannelID = "palai-alerts"

// FirebaseClient handles Firebase Cloud Messaging operations
type FirebaseClient struct {
	client *messaging.Client
}

// NewFirebaseClient creates a new Firebase client. An empty credentialsPath
// uses Application Default Credentials.
func NewFirebaseClient(ctx context.Context, credentialsPath string) (*FirebaseClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FirebaseClient{client: client}, nil
}

// Send delivers msg to a single device
func (f *FirebaseClient) Send(ctx context.Context, token string, msg *Message) (string, error) {
	m := buildMessage(msg)
	m.Token = token

	id, err := f.client.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("failed to send push notification: %w", err)
	}
	return id, nil
}

// SendMulticast delivers msg to several devices
func (f *FirebaseClient) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*BatchResult, error) {
	if len(tokens) == 0 {
		return nil, errors.New("no tokens provided")
	}

	single := buildMessage(msg)
	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: single.Notification,
		Data:         single.Data,
		Android:      single.Android,
		APNS:         single.APNS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send multicast notification: %w", err)
	}

	result := &BatchResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	for i, r := range resp.Responses {
		if !r.Success && i < len(tokens) {
			result.FailedTokens = append(result.FailedTokens, tokens[i])
		}
	}
	return result, nil
}

// SendTopic delivers msg to every device subscribed to topic
func (f *FirebaseClient) SendTopic(ctx context.Context, topic string, msg *Message) (string, error) {
	m := buildMessage(msg)
	m.Topic = topic

	id, err := f.client.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("failed to send topic notification: %w", err)
	}
	return id, nil
}

// SubscribeToTopic subscribes tokens to a topic
func (f *FirebaseClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	resp, err := f.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	if resp.FailureCount > 0 && len(resp.Errors) > 0 {
		return fmt.Errorf("failed to subscribe %d token(s) to %s: %s", resp.FailureCount, topic, resp.Errors[0].Reason)
	}
	return nil
}

// UnsubscribeFromTopic unsubscribes tokens from a topic
func (f *FirebaseClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	if _, err := f.client.UnsubscribeFromTopic(ctx, tokens, topic); err != nil {
		return fmt.Errorf("failed to unsubscribe from topic: %w", err)
	}
	return nil
}

func buildMessage(msg *Message) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: androidChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}

// IsPermanent reports FCM errors that retrying cannot fix.
func IsPermanent(err error) bool {
	return messaging.IsUnregistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err) ||
		messaging.IsThirdPartyAuthError(err)
}
