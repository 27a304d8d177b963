package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Clinic REST backend
	ClinicAPIBaseURL string
	ClinicAPITimeout time.Duration
	// ClinicAPIToken is a static bearer token for the console when no OIDC client is configured.
	ClinicAPIToken string

	// OIDC identity provider
	OIDCIssuer       string
	OIDCJWKSURL      string
	OIDCAudience     string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCTokenURL     string
	// AuthJWTSecret verifies HMAC-signed tokens from the clinic backend when
	// no OIDC issuer is configured.
	AuthJWTSecret string
	// RoleCacheTTL bounds how long a /whoami/ answer is reused per token.
	RoleCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	DatabaseURL string

	CORSAllowedOrigins []string

	// Booking flow
	ClinicTimezone           string
	SlotStep                 time.Duration
	RevalidateOnSubmit       bool
	SubmitRatePerSecond      float64
	SubmitRateBurst          int
	ConfirmationEmailEnabled bool
	ClinicNotificationEmail  string

	// EmailProvider selects the outbound mail transport: sendgrid, ses or stub.
	EmailProvider string
	AWSRegion     string
	SESFromEmail  string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClinicAPIBaseURL: getEnv("CLINIC_API_BASE_URL", "http://localhost:8000/api"),
		ClinicAPITimeout: getEnvAsDuration("CLINIC_API_TIMEOUT", 15*time.Second),
		ClinicAPIToken:   getEnv("CLINIC_API_TOKEN", ""),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCJWKSURL:      getEnv("OIDC_JWKS_URL", ""),
		OIDCAudience:     getEnv("OIDC_AUDIENCE", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCTokenURL:     getEnv("OIDC_TOKEN_URL", ""),
		AuthJWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
		RoleCacheTTL:     getEnvAsDuration("ROLE_CACHE_TTL", time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		ClinicTimezone:           getEnv("CLINIC_TIMEZONE", "UTC"),
		SlotStep:                 getEnvAsDuration("SLOT_STEP", 15*time.Minute),
		RevalidateOnSubmit:       getEnvAsBool("BOOKING_REVALIDATE_ON_SUBMIT", true),
		SubmitRatePerSecond:      getEnvAsFloat("SUBMIT_RATE_PER_SEC", 0.5),
		SubmitRateBurst:          getEnvAsInt("SUBMIT_RATE_BURST", 2),
		ConfirmationEmailEnabled: getEnvAsBool("CONFIRMATION_EMAIL_ENABLED", true),
		ClinicNotificationEmail:  getEnv("CLINIC_NOTIFICATION_EMAIL", ""),

		EmailProvider: strings.ToLower(getEnv("EMAIL_PROVIDER", "stub")),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:  getEnv("SES_FROM_EMAIL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clínica Dental"),
	}
}

// Location resolves ClinicTimezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
