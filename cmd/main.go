package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/habitlens-backend/internal/app"
	"github.com/yungbote/habitlens-backend/internal/clients/openai"
	redisclient "github.com/yungbote/habitlens-backend/internal/clients/redis"
	"github.com/yungbote/habitlens-backend/internal/db"
	"github.com/yungbote/habitlens-backend/internal/docstore"
	"github.com/yungbote/habitlens-backend/internal/jobs"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/repos"
	"github.com/yungbote/habitlens-backend/internal/services"
	"github.com/yungbote/habitlens-backend/internal/types"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Postgres (event store, read-only)
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	healthEventRepo := repos.NewHealthEventRepo(thePG, log)
	supplementRepo := repos.NewSupplementRepo(thePG, log)

	// Document store
	store, err := docstore.New(cfg.DataDir, log)
	if err != nil {
		log.Fatal("Document store init failed", "error", err)
	}

	// Analysis provider
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("Provider client init failed", "error", err)
	}

	// Services
	log.Info("Setting up services...")
	trend := services.NewTrendSummarizer(aiClient, store, cfg.TrendHistoryDays, log)
	analysis := services.NewAnalysisService(healthEventRepo, supplementRepo, aiClient, store, trend, services.AnalysisConfig{
		MinConfidence: cfg.MinConfidence,
		Batch:         cfg.BatchConfig(),
	}, log)

	// Change notifications
	rdb := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()

	notifier, err := redisclient.NewChangeNotifier(rdb, cfg.NotifyChannel, cfg.ReconnectDelay(), cfg.HeartbeatInterval(),
		func(p types.ChangePayload) {
			if err := analysis.InvalidateAndRebuild(context.Background(), p); err != nil {
				log.Error("Invalidate-and-rebuild failed", "user_id", p.UserID, "error", err)
			}
		}, log)
	if err != nil {
		log.Fatal("Change notifier init failed", "error", err)
	}
	if err := notifier.Start(); err != nil {
		log.Fatal("Change notifier start failed", "error", err)
	}
	defer notifier.Stop()

	// Daily schedule
	scheduler := jobs.NewScheduler(analysis, cfg.CronSpec, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Scheduler start failed", "error", err)
	}
	defer scheduler.Stop()

	log.Info("habitlens-backend running",
		"data_dir", cfg.DataDir,
		"channel", cfg.NotifyChannel,
	)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal, shutting down", "signal", sig.String())
}
