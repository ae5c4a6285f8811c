package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"piecework/internal/amqp"
	"piecework/internal/auth"
	"piecework/internal/cli"
	apphttp "piecework/internal/http"
	"piecework/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting piecework API")

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cli.InitLocation(logger, cfg)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// Seed the default rate table before any traffic. Seeding later
	// would silently revert admin edits.
	if len(cfg.SeedRates) > 0 {
		if err := repo.SeedDefaults(context.Background(), cfg.SeedRates); err != nil {
			logger.Error("Failed to seed default rates", "error", err)
			os.Exit(1)
		}
		logger.Info("Default rates seeded", "products", len(cfg.SeedRates))
	}

	// AMQP is optional for the API: without it entries still commit,
	// only the event-driven export goes quiet.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	az := auth.New(cfg.AdminIDs, cfg.AdminHandles)
	if len(cfg.AdminIDs) == 0 && len(cfg.AdminHandles) == 0 {
		logger.Warn("No admins configured - every user may edit rates")
	}

	var publisher services.EntryEventPublisher
	if events != nil {
		publisher = events
	}
	svc := services.NewPieceworkService(repo, az, publisher, loc)
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, svc, cfg.GatewayToken)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting piecework server", "port", cfg.Port, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
