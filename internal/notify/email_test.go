package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "citas@example.com"}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "citas@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Clínica Dental", sender.fromName)
}

func TestNewSendGridSender_CustomFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "citas@example.com", FromName: "Sonrisas"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Sonrisas", sender.fromName)
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "Test", Body: "body"})
	assert.ErrorIs(t, err, errSenderNotConfigured)
}

func TestNewSendGridSender_FromAddress(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "citas@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "citas@example.com", sender.from.Address)
	assert.Equal(t, "Clínica Dental", sender.from.Name)
}

func TestEmailMessage_HTMLFallsBackToBody(t *testing.T) {
	assert.Equal(t, "plain", EmailMessage{Body: "plain"}.htmlOrBody())
	assert.Equal(t, "<p>rich</p>", EmailMessage{Body: "plain", HTML: "<p>rich</p>"}.htmlOrBody())
}

func TestStubEmailSender_Send(t *testing.T) {
	err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "Test"})
	assert.NoError(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSESSender_NilWithoutClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{FromEmail: "citas@example.com"}, nil))
}

func TestSESSender_Send_BuildsInput(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "citas@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "ana@example.com",
		Subject: "Booking received",
		Body:    "plain",
		HTML:    "<p>html</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)

	assert.Equal(t, "Clínica Dental <citas@example.com>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Booking received", aws.ToString(client.input.Content.Simple.Subject.Data))
	assert.Equal(t, "plain", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(client.input.Content.Simple.Body.Html.Data))
}

func TestSESSender_Send_TextOnly(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "citas@example.com", FromName: "Sonrisas"}, nil)

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "s", Body: "plain"}))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
}

func TestSESSender_Send_WrapsError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	sender := NewSESSender(client, SESConfig{FromEmail: "citas@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
