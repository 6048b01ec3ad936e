package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"meal-scheduler/internal/api"
	"meal-scheduler/internal/app"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/logging"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/telegram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionSweepInterval = 5 * time.Minute

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Metrics database
	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	metricsStore := metrics.NewStore(db.SQL)
	defer metricsStore.Close()

	// 3. Schedule Store, catalog and sessions
	backend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize schedule store", zap.Error(err))
	}
	defer backend.Close()

	factory, err := app.PlannerFactory(cfg, backend.Store, metricsStore, logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	sessions := planner.NewSessions(cfg.SessionTTL, factory)
	go sweepSessions(ctx, sessions, logger)

	// 4. HTTP API, with the Telegram webhook when a bot token is set
	router := api.NewServer(sessions, backend.Catalog, metricsStore, cfg.DatabasePath, logger).Router()
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(cfg, sessions, backend.Catalog, metricsStore, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram Bot", zap.Error(err))
		}
		bot.RegisterRoutes(router)
	}

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func sweepSessions(ctx context.Context, sessions *planner.Sessions, logger *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanupExpired(); n > 0 {
				logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
