package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/bootstrap"
	"paylink/internal/clock"
	"paylink/internal/config"
	cronpkg "paylink/internal/cron"
	"paylink/internal/email"
	"paylink/internal/events"
	"paylink/internal/handler"
	"paylink/internal/links"
	"paylink/internal/payment"
	"paylink/internal/repository"
	"paylink/internal/router"
	"paylink/internal/webhook"
)

// Stripe retries a failed delivery for up to three days.
const webhookDedupTTL = 72 * time.Hour

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env == "development")
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Redis (optional, in-memory fallback) ---
	rdb, err := config.NewRedis(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory dedup and sweep lock", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// --- Collaborators ---
	clk := clock.New()
	records := repository.NewPaymentRecordRepository(db)
	appointments := repository.NewAppointmentRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL, cfg.Stripe.Timeout)
	renderer := email.NewRenderer(cfg.Email.BusinessName)
	mailer, err := email.NewSender(&cfg.Email, logger)
	if err != nil {
		logger.Fatal("Failed to configure email sender", zap.Error(err))
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Broker.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Warn("Broker unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			publisher = amqpPub
		}
	}
	defer publisher.Close()

	reconciler := webhook.NewReconciler(webhook.Deps{
		Records:   records,
		Events:    webhookEvents,
		Gateway:   gateway,
		Mailer:    mailer,
		Renderer:  renderer,
		Publisher: publisher,
		Deduper:   webhook.NewEventDeduper(rdb, webhookDedupTTL),
		Clock:     clk,
		Logger:    logger,
	}, cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance)

	sweeper := cronpkg.NewSweeper(cronpkg.SweepDeps{
		Records:   records,
		Gateway:   gateway,
		Mailer:    mailer,
		Renderer:  renderer,
		Publisher: publisher,
		Locker:    cronpkg.NewLocker(rdb),
		Clock:     clk,
		Logger:    logger,
	}, cronpkg.SweepConfig{
		Concurrency: cfg.Reminder.Concurrency,
		LockTTL:     cfg.Reminder.LockTTL,
		Thresholds: cronpkg.Thresholds{
			Reminder1Days: cfg.Reminder.Reminder1Days,
			Reminder2Days: cfg.Reminder.Reminder2Days,
			CancelDays:    cfg.Reminder.CancelDays,
		},
	})

	if hasArg("--sweep-once") {
		summary, err := sweeper.Run(context.Background())
		if err != nil {
			logger.Fatal("Reminder sweep failed", zap.Error(err))
		}
		logger.Info("Reminder sweep finished",
			zap.Int("reminder1_sent", summary.Reminder1Sent),
			zap.Int("reminder2_sent", summary.Reminder2Sent),
			zap.Int("auto_canceled", summary.AutoCanceled),
			zap.Int("link_deactivations", summary.LinkDeactivations),
			zap.Strings("errors", summary.Errors),
		)
		return
	}

	linkService := links.NewService(links.Deps{
		Records:      records,
		Appointments: appointments,
		Activity:     repository.NewActivityLogRepository(db),
		Gateway:      gateway,
		Mailer:       mailer,
		Renderer:     renderer,
		Clock:        clk,
		Logger:       logger,

		CheckoutSuccessURL: cfg.Stripe.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.Stripe.CheckoutCancelURL,
	}, cfg.Stripe.Currency)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, router.Handlers{
		Webhook: handler.NewWebhookHandler(reconciler, logger),
		Sweep:   handler.NewSweepHandler(sweeper, logger),
		Links:   handler.NewLinksHandler(linkService, reconciler, logger),
		Slots:   handler.NewSlotsHandler(appointments, linkService, logger),
	}, logger, cfg.API.Key)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg.Reminder.Schedule, sweeper, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start cron scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting paylink server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron, waiting for a running sweep to finish
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, false)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
