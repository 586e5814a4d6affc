package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// TwilioNotifier texts the event message to Event.Phone. Events without a
// phone number are skipped.
type TwilioNotifier struct {
	messages   messageCreator
	fromNumber string
}

func NewTwilioNotifier(accountSid, authToken, fromNumber string) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return &TwilioNotifier{messages: client.Api, fromNumber: fromNumber}
}

func (t *TwilioNotifier) Notify(_ context.Context, event Event) error {
	if event.Phone == "" || event.Message == "" {
		return nil
	}

	params := &api.CreateMessageParams{}
	params.SetTo(event.Phone)
	params.SetFrom(t.fromNumber)
	params.SetBody(event.Message)

	if _, err := t.messages.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio sms %s: %w", event.Type, err)
	}
	return nil
}
