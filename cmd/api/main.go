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

	"github.com/jumppguru/backend/internal/api/handlers"
	redisCache "github.com/jumppguru/backend/internal/cache/redis"
	"github.com/jumppguru/backend/internal/ingestion"
	"github.com/jumppguru/backend/internal/llm"
	"github.com/jumppguru/backend/internal/metrics"
	"github.com/jumppguru/backend/internal/middleware/ratelimit"
	"github.com/jumppguru/backend/internal/middleware/security"
	"github.com/jumppguru/backend/internal/middleware/validation"
	"github.com/jumppguru/backend/internal/orchestrator"
	"github.com/jumppguru/backend/internal/retrieval"
	"github.com/jumppguru/backend/internal/scrape"
	"github.com/jumppguru/backend/internal/search/serp"
	"github.com/jumppguru/backend/internal/storage/sqlite"
	"github.com/jumppguru/backend/internal/vector/milvus"
	"github.com/jumppguru/backend/internal/web"
	"github.com/jumppguru/backend/pkg/config"
	appLogger "github.com/jumppguru/backend/pkg/logger"
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

	appLogger.Info("Starting JumppGuru API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var cacheClient *redisCache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	// The typed nil of a disabled cache must not reach the interface fields.
	var embeddingCache retrieval.EmbeddingCache
	var answerCache orchestrator.AnswerCache
	if cacheClient != nil {
		embeddingCache = cacheClient
		answerCache = cacheClient
	}

	retriever := retrieval.NewRetriever(llmClient, milvusClient, embeddingCache)
	searcher := serp.NewClient(cfg.Search.SerpAPIKey)
	fetcher := scrape.NewFetcher(
		time.Duration(cfg.Scrape.TimeoutSec)*time.Second,
		cfg.Scrape.PageCharLimit,
	)
	webResolver := web.NewResolver(searcher, fetcher, llmClient, llmClient, milvusClient, cfg.Search.MaxResults)

	router := orchestrator.NewRouter(cfg.Routing.Mode, llmClient)
	orch := orchestrator.New(
		sqliteClient,
		sqliteClient,
		retriever,
		llmClient,
		webResolver,
		router,
		answerCache,
		orchestrator.Config{
			TopK:        cfg.Retrieval.TopK,
			MinScore:    cfg.Retrieval.MinScore,
			RecentTurns: cfg.History.RecentTurns,
		},
	)

	processor := ingestion.NewProcessor(llmClient, milvusClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{}))

	queryHandler := handlers.NewQueryHandler(orch, sqliteClient, 50)
	ingestHandler := handlers.NewIngestHandler(processor)
	wsHandler := handlers.NewWebSocketHandler(orch)

	api := app.Group("/api/v1")
	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/history", queryHandler.GetHistory)
	api.Post("/ingest", ingestHandler.HandleIngest)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/query", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

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

	// Let detached re-index and analytics writes land before exit.
	webResolver.Drain()
	orch.Drain()

	appLogger.Info("Server stopped")
}
