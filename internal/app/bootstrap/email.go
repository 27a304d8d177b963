package bootstrap

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/dental-booking/internal/config"
	"github.com/wolfman30/dental-booking/internal/notify"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Email providers accepted by EMAIL_PROVIDER.
const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildEmailSender picks the outbound mail transport. A provider that is
// selected but not configured falls back to the stub sender, and the returned
// reason says why.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case EmailProviderSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return notify.NewStubEmailSender(logger), EmailProviderStub, "sendgrid api key missing"
		}
		return sender, EmailProviderSendGrid, ""
	case EmailProviderSES:
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return notify.NewStubEmailSender(logger), EmailProviderStub, "ses sender address missing"
		}
		client, err := buildSESClient(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn("ses unavailable", "error", err)
			return notify.NewStubEmailSender(logger), EmailProviderStub, err.Error()
		}
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), EmailProviderSES, ""
	default:
		return notify.NewStubEmailSender(logger), EmailProviderStub, ""
	}
}

func buildSESClient(ctx context.Context, region string) (*sesv2.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

// BuildNotifier wires booking confirmation emails. It returns nil when both
// patient and clinic emails are disabled.
func BuildNotifier(sender notify.EmailSender, cfg *appconfig.Config, logger *logging.Logger) *notify.Service {
	if cfg == nil || sender == nil {
		return nil
	}
	if !cfg.ConfirmationEmailEnabled && strings.TrimSpace(cfg.ClinicNotificationEmail) == "" {
		return nil
	}
	return notify.NewService(sender, notify.ServiceConfig{
		Location:       cfg.Location(),
		ClinicEmail:    strings.TrimSpace(cfg.ClinicNotificationEmail),
		PatientEnabled: cfg.ConfirmationEmailEnabled,
	}, logger)
}
