package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-booking/internal/booking"
	httpmiddleware "github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/internal/reservations"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Booking            *booking.Handler
	Reservations       *reservations.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Auth verifies the caller's bearer token on every /api route.
	Auth func(http.Handler) http.Handler
	// SubmitLimiter throttles booking submissions per caller (optional).
	SubmitLimiter *httpmiddleware.RateLimiter

	// Checks run by /health; any error turns the response into 503.
	Checks map[string]func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Checks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Compress(5))
		if cfg.Auth != nil {
			api.Use(cfg.Auth)
		}
		if cfg.Booking != nil {
			var submit []func(http.Handler) http.Handler
			if cfg.SubmitLimiter != nil {
				submit = append(submit, httpmiddleware.RateLimit(cfg.SubmitLimiter))
			}
			cfg.Booking.Mount(api, submit...)
		}
		if cfg.Reservations != nil {
			cfg.Reservations.Mount(api)
			api.Get("/me", cfg.Reservations.WhoAmI)
		}
	})

	return r
}

func healthHandler(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
