package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "fcm-token-abcdef123456"

func TestUserTopic(t *testing.T) {
	assert.Equal(t, "user-123e4567-e89b", UserTopic("123e4567-e89b"))
	assert.Equal(t, "user-juan_dela_cruz_", UserTopic(" juan dela cruz! "))
}

func TestRegisterDevice(t *testing.T) {
	client := &mockPushClient{}
	client.On("SubscribeToTopic", mock.Anything, []string{testToken}, "user-u1").Return(nil).Once()
	client.On("SubscribeToTopic", mock.Anything, []string{testToken}, "palai-announcements").Return(nil).Once()

	svc := NewService(client, "palai-announcements")
	require.NoError(t, svc.RegisterDevice(context.Background(), "u1", testToken))
	client.AssertExpectations(t)
}

func TestRegisterDeviceValidation(t *testing.T) {
	svc := NewService(&mockPushClient{}, "palai-announcements")

	assert.ErrorIs(t, svc.RegisterDevice(context.Background(), "", testToken), ErrEmptyUserID)
	assert.ErrorIs(t, svc.RegisterDevice(context.Background(), "u1", ""), ErrEmptyToken)
}

func TestRegisterDeviceStopsOnUserTopicFailure(t *testing.T) {
	client := &mockPushClient{}
	client.On("SubscribeToTopic", mock.Anything, mock.Anything, "user-u1").Return(errors.New("unavailable")).Once()

	svc := NewService(client, "palai-announcements")
	err := svc.RegisterDevice(context.Background(), "u1", testToken)
	require.Error(t, err)
	client.AssertNotCalled(t, "SubscribeToTopic", mock.Anything, mock.Anything, "palai-announcements")
}

func TestUnregisterDeviceAttemptsBothTopics(t *testing.T) {
	client := &mockPushClient{}
	userErr := errors.New("user topic down")
	client.On("UnsubscribeFromTopic", mock.Anything, []string{testToken}, "user-u1").Return(userErr).Once()
	client.On("UnsubscribeFromTopic", mock.Anything, []string{testToken}, "palai-announcements").Return(nil).Once()

	svc := NewService(client, "palai-announcements")
	err := svc.UnregisterDevice(context.Background(), "u1", testToken)
	assert.ErrorIs(t, err, userErr)
	client.AssertExpectations(t)

	assert.NoError(t, svc.UnregisterDevice(context.Background(), "u1", ""))
}

func TestNotifyUserAndBroadcast(t *testing.T) {
	client := &mockPushClient{}
	msg := &Message{Title: "Leaf blast alert", Body: "High blast risk in Nueva Ecija this week"}
	client.On("SendTopic", mock.Anything, "user-u1", msg).Return("msg-1", nil).Once()
	client.On("SendTopic", mock.Anything, "palai-announcements", msg).Return("msg-2", nil).Once()

	svc := NewService(client, "palai-announcements")

	id, err := svc.NotifyUser(context.Background(), "u1", msg)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	id, err = svc.Broadcast(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "msg-2", id)

	_, err = svc.NotifyUser(context.Background(), "", msg)
	assert.ErrorIs(t, err, ErrEmptyUserID)
	client.AssertExpectations(t)
}

func TestLogClientNeverFails(t *testing.T) {
	var client PushClient = LogClient{}
	msg := &Message{Title: "t", Body: "b"}

	id, err := client.Send(context.Background(), testToken, msg)
	require.NoError(t, err)
	assert.Contains(t, id, "log-")

	batch, err := client.SendMulticast(context.Background(), []string{"a", "b"}, msg)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.SuccessCount)

	assert.NoError(t, client.SubscribeToTopic(context.Background(), []string{testToken}, "x"))
	assert.NoError(t, client.UnsubscribeFromTopic(context.Background(), []string{testToken}, "x"))
}
