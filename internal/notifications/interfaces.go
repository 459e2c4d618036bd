package notifications

import "context"

// Message is a push notification payload
type Message struct {
	Title    string            `json:"title" binding:"required,max=120"`
	Body     string            `json:"body" binding:"required,max=1000"`
	Data     map[string]string `json:"data,omitempty"`
	ImageURL string            `json:"image_url,omitempty" binding:"omitempty,url"`
}

// BatchResult summarizes a multicast send
type BatchResult struct {
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	FailedTokens []string `json:"failed_tokens,omitempty"`
}

// PushClient delivers push notifications to devices and topics
type PushClient interface {
	Send(ctx context.Context, token string, msg *Message) (string, error)
	SendMulticast(ctx context.Context, tokens []string, msg *Message) (*BatchResult, error)
	SendTopic(ctx context.Context, topic string, msg *Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) error
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error
}
