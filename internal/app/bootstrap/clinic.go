package bootstrap

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/wolfman30/dental-booking/internal/booking"
	"github.com/wolfman30/dental-booking/internal/clinicapi"
	appconfig "github.com/wolfman30/dental-booking/internal/config"
	"github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/internal/reservations"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// BuildClinicClient creates the clinic backend client without credentials.
// Per-request clients get the caller's token through the backend resolvers.
func BuildClinicClient(cfg *appconfig.Config, metrics clinicapi.RequestObserver, logger *logging.Logger) (*clinicapi.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	return clinicapi.New(clinicapi.Config{
		BaseURL:  cfg.ClinicAPIBaseURL,
		Timeout:  cfg.ClinicAPITimeout,
		Location: cfg.Location(),
		Logger:   logger,
		Metrics:  metrics,
	})
}

// forCaller attaches the bearer token that authenticated the request.
func forCaller(ctx context.Context, client *clinicapi.Client) (*clinicapi.Client, error) {
	token, ok := middleware.BearerTokenFromContext(ctx)
	if !ok {
		return nil, clinicapi.ErrMissingToken
	}
	return client.WithToken(token), nil
}

// BookingBackends resolves a booking backend acting as the caller.
func BookingBackends(client *clinicapi.Client) booking.BackendFunc {
	return func(ctx context.Context) (booking.Backend, error) {
		c, err := forCaller(ctx, client)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ReservationBackends resolves a reservations backend acting as the caller.
func ReservationBackends(client *clinicapi.Client) reservations.BackendFunc {
	return func(ctx context.Context) (reservations.Backend, error) {
		c, err := forCaller(ctx, client)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ConsoleTokenSource returns credentials for tools that run outside a
// browser session: OIDC client credentials when configured, else the static
// CLINIC_API_TOKEN.
func ConsoleTokenSource(ctx context.Context, cfg *appconfig.Config) (oauth2.TokenSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if cfg.OIDCClientID != "" && cfg.OIDCClientSecret != "" && cfg.OIDCTokenURL != "" {
		return clinicapi.ClientCredentials(ctx, clinicapi.ClientCredentialsConfig{
			TokenURL:     cfg.OIDCTokenURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Audience:     cfg.OIDCAudience,
		})
	}
	if cfg.ClinicAPIToken != "" {
		return clinicapi.StaticToken(cfg.ClinicAPIToken), nil
	}
	return nil, fmt.Errorf("bootstrap: set OIDC client credentials or CLINIC_API_TOKEN")
}
