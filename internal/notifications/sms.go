package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

var ErrNoMessageSID = errors.New("twilio returned no message sid")

// messageCreator is the slice of the Twilio REST API the client uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioClient sends SMS through Twilio
type TwilioClient struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioClient creates a new Twilio client
func NewTwilioClient(accountSID, authToken, fromNumber string) *TwilioClient {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioClient{api: client.Api, fromNumber: fromNumber}
}

// SendSMS sends body to the E.164 number to and returns the message SID
func (t *TwilioClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		recordSend("sms", err)
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		recordSend("sms", ErrNoMessageSID)
		return "", ErrNoMessageSID
	}

	recordSend("sms", nil)
	logger.DebugContext(ctx, "sms sent", zap.String("sid", *resp.Sid), zap.String("to", maskToken(to)))
	return *resp.Sid, nil
}
