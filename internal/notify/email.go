// Package notify delivers booking emails to patients and clinic staff.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/dental-booking/pkg/logging"
)

const defaultFromName = "Clínica Dental"

var errSenderNotConfigured = errors.New("notify: email sender not configured")

// EmailSender delivers one rendered message. Confirmation and clinic summary
// emails both go through it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered email. HTML is optional; providers fall back to
// Body when it is empty.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

func (m EmailMessage) htmlOrBody() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender posts booking emails through the SendGrid v3 API.
type SendGridSender struct {
	client   *sendgrid.Client
	from     *mail.Email
	fromName string
	logger   *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured so bootstrap
// can fall back to the stub sender.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	name := cfg.FromName
	if name == "" {
		name = defaultFromName
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(cfg.APIKey),
		from:     mail.NewEmail(name, cfg.FromEmail),
		fromName: name,
		logger:   logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil || s.from == nil {
		return errSenderNotConfigured
	}
	envelope := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Body, msg.htmlOrBody())

	resp, err := s.client.SendWithContext(ctx, envelope)
	if err != nil {
		s.logger.Error("booking email not delivered", "provider", "sendgrid", "to", msg.To, "error", err)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("booking email rejected", "provider", "sendgrid", "to", msg.To, "status", resp.StatusCode)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	s.logger.Info("booking email sent", "provider", "sendgrid", "to", msg.To, "subject", msg.Subject)
	return nil
}

// StubEmailSender only logs. Bootstrap selects it when no provider is
// configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("booking email skipped", "provider", "stub", "to", msg.To, "subject", msg.Subject)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
