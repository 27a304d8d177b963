package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-booking/internal/api/router"
	"github.com/wolfman30/dental-booking/internal/app/bootstrap"
	"github.com/wolfman30/dental-booking/internal/audit"
	"github.com/wolfman30/dental-booking/internal/booking"
	appconfig "github.com/wolfman30/dental-booking/internal/config"
	"github.com/wolfman30/dental-booking/internal/events"
	httpmiddleware "github.com/wolfman30/dental-booking/internal/http/middleware"
	"github.com/wolfman30/dental-booking/internal/notify"
	"github.com/wolfman30/dental-booking/internal/observability/metrics"
	"github.com/wolfman30/dental-booking/internal/reservations"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildServer wires every dependency from cfg. The returned cleanup closes
// connections opened here.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metricsHandler, bookingMetrics := setupMetrics()

	clinic, err := bootstrap.BuildClinicClient(cfg, bookingMetrics, logger)
	if err != nil {
		return nil, cleanup, err
	}

	checks := map[string]func(context.Context) error{}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	store := bootstrap.BuildSessionStore(redisClient, cfg, logger)

	var recorder booking.AttemptRecorder
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		closers = append(closers, pool.Close)
		checks["postgres"] = pool.Ping
		recorder = audit.NewStore(pool)
	}

	sender, provider, reason := bootstrap.BuildEmailSender(ctx, cfg, logger)
	logger.Info("email transport selected", "provider", provider, "reason", reason)
	var notifier booking.ConfirmationNotifier
	if notifications := bootstrap.BuildNotifier(sender, cfg, logger); notifications != nil {
		notifier = notifications
		if pool != nil {
			// Queued confirmations are retried by the deliverer.
			outbox := events.NewOutboxStore(pool)
			notifier = notify.NewQueuedNotifier(outbox)
			go events.NewDeliverer(outbox, notifications, logger).Start(ctx)
		}
	}

	loc := cfg.Location()
	fetcher := booking.NewFetcher(loc, bookingMetrics, logger)
	submitter := booking.NewSubmitter(booking.SubmitterConfig{
		Revalidate: cfg.RevalidateOnSubmit,
		Fetcher:    fetcher,
		Recorder:   recorder,
		Notifier:   notifier,
		Metrics:    bookingMetrics,
		Logger:     logger,
	})
	svc, err := booking.NewService(booking.ServiceConfig{
		Store:     store,
		Backends:  bootstrap.BookingBackends(clinic),
		Fetcher:   fetcher,
		Submitter: submitter,
		Metrics:   bookingMetrics,
		Logger:    logger,
		SlotStep:  cfg.SlotStep,
	})
	if err != nil {
		return nil, cleanup, err
	}

	resSvc := reservations.NewService(bootstrap.ReservationBackends(clinic), cfg.RoleCacheTTL, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.SubmitRatePerSecond, cfg.SubmitRateBurst)
	closers = append(closers, limiter.Close)

	auth := httpmiddleware.Authenticate(httpmiddleware.OIDCConfig{
		Issuer:   cfg.OIDCIssuer,
		JWKSURL:  cfg.OIDCJWKSURL,
		Audience: cfg.OIDCAudience,
	}, cfg.AuthJWTSecret)

	return router.New(&router.Config{
		Logger:             logger,
		Booking:            booking.NewHandler(svc, loc, logger),
		Reservations:       reservations.NewHandler(resSvc, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Auth:               auth,
		SubmitLimiter:      limiter,
		Checks:             checks,
	}), cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}
