package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SLOT_STEP", "")
	t.Setenv("BOOKING_REVALIDATE_ON_SUBMIT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("CLINIC_TIMEZONE", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("ROLE_CACHE_TTL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SlotStep != 15*time.Minute {
		t.Fatalf("expected default slot step, got %s", cfg.SlotStep)
	}
	if !cfg.RevalidateOnSubmit {
		t.Fatalf("expected revalidation enabled by default")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location by default")
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider by default, got %s", cfg.EmailProvider)
	}
	if cfg.RoleCacheTTL != time.Minute {
		t.Fatalf("expected one minute role cache, got %s", cfg.RoleCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CLINIC_API_BASE_URL", "https://clinic.example.com/api")
	t.Setenv("CLINIC_API_TIMEOUT", "5s")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SLOT_STEP", "30m")
	t.Setenv("BOOKING_REVALIDATE_ON_SUBMIT", "false")
	t.Setenv("SUBMIT_RATE_PER_SEC", "2.5")
	t.Setenv("SUBMIT_RATE_BURST", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("CLINIC_TIMEZONE", "Not/AZone")
	t.Setenv("EMAIL_PROVIDER", "SES")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("CLINIC_NOTIFICATION_EMAIL", "recepcion@clinica.example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ClinicAPIBaseURL != "https://clinic.example.com/api" {
		t.Fatalf("expected base url override, got %s", cfg.ClinicAPIBaseURL)
	}
	if cfg.ClinicAPITimeout != 5*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.ClinicAPITimeout)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
	if cfg.SlotStep != 30*time.Minute {
		t.Fatalf("expected slot step override, got %s", cfg.SlotStep)
	}
	if cfg.RevalidateOnSubmit {
		t.Fatalf("expected revalidation disabled")
	}
	if cfg.SubmitRatePerSecond != 2.5 || cfg.SubmitRateBurst != 4 {
		t.Fatalf("unexpected rate settings: %v/%d", cfg.SubmitRatePerSecond, cfg.SubmitRateBurst)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback for unknown zone")
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected provider to be lowercased, got %s", cfg.EmailProvider)
	}
	if cfg.AuthJWTSecret != "s3cret" || cfg.ClinicNotificationEmail != "recepcion@clinica.example.com" {
		t.Fatalf("unexpected auth/notification settings: %+v", cfg)
	}
}
