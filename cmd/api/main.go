package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/ai"
	"github.com/ticketmind/backend/internal/api/handlers"
	"github.com/ticketmind/backend/internal/assistant"
	"github.com/ticketmind/backend/internal/cache/redis"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/metrics"
	"github.com/ticketmind/backend/internal/middleware/ratelimit"
	"github.com/ticketmind/backend/internal/middleware/security"
	"github.com/ticketmind/backend/internal/prompt"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/internal/storage/sqlite"
	"github.com/ticketmind/backend/pkg/config"
	appLogger "github.com/ticketmind/backend/pkg/logger"
	"github.com/ticketmind/backend/pkg/retry"
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

	appLogger.Info("Starting TicketMind API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var responseCache ai.Cache
	var redisClient *redis.Client
	err = retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		var dialErr error
		redisClient, dialErr = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		return dialErr
	})
	if err != nil {
		appLogger.Warn("Redis unavailable, analysis caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		responseCache = redisClient
	}

	cacheTTL := time.Duration(cfg.Assistant.CacheTTLSec) * time.Second
	providers := ai.NewRegistry()
	providers.Register(ai.ProviderCloud, ai.NewCachedProvider(
		ai.NewCloudClient(cfg.Cloud.APIKey, cfg.Cloud.BaseURL, cfg.Cloud.Model, cfg.Cloud.TimeoutSec),
		responseCache, cacheTTL,
	))
	providers.Register(ai.ProviderLocal, ai.NewCachedProvider(
		ai.NewLocalClient(cfg.Local.Host, cfg.Local.Model, cfg.Local.TimeoutSec),
		responseCache, cacheTTL,
	))

	extractor := record.NewAnalyzer(record.NewSQLProvider(sqliteClient))
	searcher := kb.NewSearcher(kb.NewSQLCorpus(sqliteClient))
	prompts := prompt.NewBuilder(cfg.Assistant.SystemPrompt)

	service := assistant.NewService(cfg, extractor, searcher, sqliteClient, prompts, providers)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	analyzeLimiter := ratelimit.New("analyze", cfg.Assistant.RateLimitAnalyze)
	chatLimiter := ratelimit.New("chat", cfg.Assistant.RateLimitChat)
	defer analyzeLimiter.Stop()
	defer chatLimiter.Stop()

	assistHandler := handlers.NewAssistHandler(service, searcher)
	wsHandler := handlers.NewWebSocketHandler(service)

	api := app.Group("/api/v1")

	api.Post("/assist/analyze", analyzeLimiter.Middleware(), assistHandler.HandleAnalyze)
	api.Post("/assist/chat", chatLimiter.Middleware(), assistHandler.HandleChat)
	api.Post("/assist/feedback", assistHandler.HandleFeedback)
	api.Get("/assist/history", assistHandler.HandleHistory)
	api.Get("/assist/provider/health", assistHandler.HandleProviderHealth)

	api.Get("/kb/popular", assistHandler.HandlePopularArticles)

	api.Use("/assist/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/assist/ws", chatLimiter.Middleware(), websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

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
