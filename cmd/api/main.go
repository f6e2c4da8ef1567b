package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/afyalink/telemed-platform/internal/api/router"
	"github.com/afyalink/telemed-platform/internal/appointments"
	"github.com/afyalink/telemed-platform/internal/availability"
	appconfig "github.com/afyalink/telemed-platform/internal/config"
	"github.com/afyalink/telemed-platform/internal/consultations"
	"github.com/afyalink/telemed-platform/internal/doctors"
	"github.com/afyalink/telemed-platform/internal/http/handlers"
	"github.com/afyalink/telemed-platform/internal/notify"
	"github.com/afyalink/telemed-platform/internal/observability/metrics"
	"github.com/afyalink/telemed-platform/internal/payments"
	"github.com/afyalink/telemed-platform/internal/reminders"
	"github.com/afyalink/telemed-platform/internal/video"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telemed-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, slot caching degraded", "error", err)
	}
	defer redisClient.Close()

	lifecycleMetrics := metrics.NewLifecycleMetrics(prometheus.DefaultRegisterer)

	// Repositories
	doctorRepo := doctors.NewRepository(pool)
	templateRepo := availability.NewRepository(pool)
	appointmentRepo := appointments.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	reminderLog := reminders.NewLog(pool)

	// Availability
	slotCache := availability.NewSlotCache(redisClient, cfg.SlotCacheTTL)
	calculator := availability.NewCalculator(templateRepo, appointmentRepo, slotCache, logger)

	// Payments
	gateway := payments.NewPaystackClient(cfg.PaystackSecretKey, logger).
		WithBaseURL(cfg.PaystackBaseURL).
		WithTimeout(cfg.GatewayTimeout).
		WithRetryPolicy(cfg.GatewayRetryMax, cfg.GatewayRetryBaseDelay)

	// Appointment lifecycle. The payments service and the lifecycle refer
	// to each other through narrow interfaces, so wire the lifecycle
	// first without refunds, then close the loop.
	lifecycle := appointments.NewLifecycle(appointmentRepo, doctorRepo, nil, slotCache, lifecycleMetrics, logger)
	paymentService := payments.NewService(paymentRepo, gateway, lifecycle, lifecycleMetrics, logger).
		WithCheckoutOptions(cfg.PaystackCallbackURL, cfg.PaymentChannels)
	lifecycle = appointments.NewLifecycle(appointmentRepo, doctorRepo, paymentService, slotCache, lifecycleMetrics, logger)

	booking := appointments.NewBookingService(appointmentRepo, doctorRepo, calculator, slotCache, lifecycleMetrics, logger)

	// Consultations
	roomClient := video.NewRoomClient(cfg.VideoAPIKey, cfg.VideoBaseURL, logger)
	tokenIssuer := video.NewTokenIssuer(cfg.VideoTokenSecret, cfg.VideoTokenTTL)
	sessions := consultations.NewManager(lifecycle, roomClient, tokenIssuer, logger)

	// Reminders
	var dispatcher reminders.Notifier
	if cfg.NotifyEndpoint != "" {
		dispatcher = notify.NewHTTPDispatcher(cfg.NotifyEndpoint, logger)
	} else {
		dispatcher = notify.NewStubDispatcher(logger)
	}
	scheduler := reminders.NewScheduler(appointmentRepo, reminderLog, dispatcher, lifecycleMetrics, logger).
		WithInterval(cfg.ReminderInterval).
		WithThresholds(cfg.ReminderThresholds).
		WithWindow(cfg.ReminderWindow)
	go scheduler.Start(ctx)

	// HTTP surface
	routerCfg := &router.Config{
		Logger:          logger,
		Appointments:    handlers.NewAppointmentsHandler(booking, lifecycle, logger),
		Availability:    handlers.NewAvailabilityHandler(calculator, doctorRepo, logger),
		Payments:        handlers.NewPaymentsHandler(paymentService, logger),
		Consultations:   handlers.NewConsultationsHandler(sessions, logger),
		PaystackWebhook: payments.NewWebhookHandler(cfg.PaystackSecretKey, paymentService, lifecycleMetrics, logger),
		MetricsHandler:  promhttp.Handler(),
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
