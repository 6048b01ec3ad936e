package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/logging"
	"meal-scheduler/internal/metrics"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	metricsStore := metrics.NewStore(db.SQL)
	defer metricsStore.Close()

	backend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize schedule store", zap.Error(err))
	}
	defer backend.Close()

	factory, err := app.PlannerFactory(cfg, backend.Store, metricsStore, logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	application := app.NewApp(factory(), backend.Catalog, metricsStore, os.Stdout, logger)
	if err := application.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrUsage) {
			os.Exit(2)
		}
		logger.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
