package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/api/handlers"
	"github.com/contentpulse/backend/internal/cache/redis"
	"github.com/contentpulse/backend/internal/classifier"
	"github.com/contentpulse/backend/internal/enrich"
	"github.com/contentpulse/backend/internal/insights"
	"github.com/contentpulse/backend/internal/llm"
	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/internal/middleware/ratelimit"
	"github.com/contentpulse/backend/internal/middleware/security"
	"github.com/contentpulse/backend/internal/middleware/validation"
	"github.com/contentpulse/backend/internal/report"
	"github.com/contentpulse/backend/internal/storage/sqlite"
	"github.com/contentpulse/backend/pkg/config"
	appLogger "github.com/contentpulse/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ContentPulse API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Redis only accelerates classification and draft lookups. A report run
	// works without it, so a missing cache downgrades instead of aborting.
	cacheClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		defer cacheClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)
	appLogger.Info("LLM client ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)

	// Without an API key uploads still aggregate, they just run unclassified
	// and skip insights.
	var (
		reportClassifier report.Classifier
		narrator         report.Narrator
	)
	if cfg.LLM.APIKey != "" {
		var classifierCache classifier.Cache
		if cacheClient != nil {
			classifierCache = cacheClient
		}
		reportClassifier = classifier.New(llmClient, classifierCache, classifier.Config{
			BatchSize:     cfg.Classifier.BatchSize,
			SchemaVersion: cfg.Classifier.SchemaVersion,
			CacheTTL:      time.Duration(cfg.Classifier.CacheTTLHours) * time.Hour,
		})
		narrator = insights.NewGenerator(llmClient, cfg.LLM.Model)
	} else {
		appLogger.Warn("LLM API key missing, classification and insights disabled")
	}

	var titles report.TitleFetcher
	if cfg.Enrich.Enabled {
		titles = enrich.NewFetcher(cfg.Enrich.TimeoutSec, cfg.Enrich.UserAgent)
	}

	var drafts report.DraftCache
	if cacheClient != nil {
		drafts = cacheClient
	}

	reportService := report.NewService(
		sqliteClient,
		reportClassifier,
		narrator,
		titles,
		drafts,
		report.Config{
			Analysis: analysis.Options{
				ArticleCountThreshold: cfg.Analysis.ArticleCountThreshold,
				TopN:                  cfg.Analysis.TopN,
				DiscoverLimit:         cfg.Analysis.DiscoverLimit,
			},
			SchemaVersion:     cfg.Classifier.SchemaVersion,
			ClassifyByDefault: cfg.Classifier.Enabled,
		},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Environment == "development",
	}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
	}))

	reportHandler := handlers.NewReportHandler(reportService)

	var cachePinger handlers.Pinger
	if cacheClient != nil {
		cachePinger = cacheClient
	}
	healthHandler := handlers.NewHealthHandler(sqliteClient, cachePinger)

	var adminCache handlers.ClassificationCache
	if cacheClient != nil {
		adminCache = cacheClient
	}
	adminHandler := handlers.NewAdminHandler(adminCache)

	wsHandler := handlers.NewWebSocketHandler(reportService, llmClient)

	api := app.Group("/api/v1")

	api.Post("/reports", reportHandler.CreateReport)
	api.Get("/reports", reportHandler.ListReports)
	api.Get("/reports/:id", reportHandler.GetReport)
	api.Delete("/reports/:id", reportHandler.DeleteReport)
	api.Get("/reports/:id/export/:dimension", reportHandler.ExportReport)
	api.Get("/reports/:id/email-draft", reportHandler.EmailDraft)

	api.Post("/admin/classifications/invalidate", adminHandler.InvalidateClassifications)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/assistant", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
