package notifications

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockPushClient struct {
	mock.Mock
}

func (m *mockPushClient) Send(ctx context.Context, token string, msg *Message) (string, error) {
	args := m.Called(ctx, token, msg)
	return args.String(0), args.Error(1)
}

func (m *mockPushClient) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*BatchResult, error) {
	args := m.Called(ctx, tokens, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResult), args.Error(1)
}

func (m *mockPushClient) SendTopic(ctx context.Context, topic string, msg *Message) (string, error) {
	args := m.Called(ctx, topic, msg)
	return args.String(0), args.Error(1)
}

func (m *mockPushClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	args := m.Called(ctx, tokens, topic)
	return args.Error(0)
}

func (m *mockPushClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	args := m.Called(ctx, tokens, topic)
	return args.Error(0)
}
