package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweepEvery = 5 * time.Minute
)

func main() {
	cfg, logger := cli.LoadConfig()
	cli.ExitOnError(logger, "Configuration validation failed", cfg.Validate())

	logger.Info("Starting fintrack", log.FieldOperation, log.OpStartup, "env", cfg.AppEnv)

	be := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	// Ledger events are optional; a nil publisher disables them.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			events = client
			defer client.Close()
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	auth := services.NewAuthService(be.Store, services.AuthConfig{
		SessionTTL: cfg.SessionTTL,
		CacheSize:  cfg.SessionCacheMax,
	}, logger)

	caches := cache.NewManager()
	caches.Register(auth.SessionCache())
	caches.StartCleanup(cacheSweepEvery)

	sweeper := services.NewSessionSweeper(auth, services.SessionSweeperConfig{Interval: cfg.SessionSweep}, logger)
	cli.ExitOnError(logger, "Failed to start session sweeper", sweeper.Start(context.Background()))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:      be.Store,
		Auth:       auth,
		Ledger:     services.NewLedgerService(be.Store, events, logger),
		Accounts:   services.NewAccountService(be.Store, logger),
		Categories: services.NewCategoryService(be.Store),
		Analytics:  services.NewAnalyticsService(be.Store),
		Bot:        services.NewBotConfigService(be.Store),
		Logger:     logger,
	}, apphttp.Options{
		DevErrors:          cfg.IsDevelopment(),
		CookieSecure:       cfg.CookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := sweeper.Stop(ctx); err != nil {
			logger.Warn("Session sweeper stop failed", log.FieldError, err)
		}
		caches.Stop()
	})

	logger.Info("Starting HTTP server", "port", cfg.Port, log.FieldBackend, be.Kind.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.ExitOnError(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
