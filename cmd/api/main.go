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

	"github.com/legal-rag/backend/internal/api/handlers"
	"github.com/legal-rag/backend/internal/cache/redis"
	"github.com/legal-rag/backend/internal/embedding"
	"github.com/legal-rag/backend/internal/graph/builder"
	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/internal/ingestion"
	"github.com/legal-rag/backend/internal/llm"
	"github.com/legal-rag/backend/internal/metrics"
	"github.com/legal-rag/backend/internal/middleware/ratelimit"
	"github.com/legal-rag/backend/internal/middleware/security"
	"github.com/legal-rag/backend/internal/middleware/validation"
	"github.com/legal-rag/backend/internal/retrieval"
	"github.com/legal-rag/backend/internal/segmenter"
	"github.com/legal-rag/backend/internal/storage/sqlite"
	"github.com/legal-rag/backend/internal/watcher"
	"github.com/legal-rag/backend/pkg/config"
	appLogger "github.com/legal-rag/backend/pkg/logger"
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

	appLogger.Info("Starting Legal Contract RAG API Server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(cfg.Neo4j, cfg.LLM.EmbeddingDim)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	if err := neo4jClient.SetupSchema(context.Background()); err != nil {
		appLogger.Fatal("Failed to set up graph schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	llmClient := llm.NewClient(cfg.LLM)

	var embeddingCache embedding.Store
	if redisClient != nil {
		embeddingCache = redisClient
	}
	embedder := embedding.NewProvider(llmClient, embeddingCache)

	graphBuilder := builder.New(neo4jClient, embedder, cfg.Ingestion.SimilarityThreshold)
	retriever := retrieval.New(neo4jClient, embedder, cfg.Retrieval.TopK)

	var answerCache ingestion.AnswerCache
	if redisClient != nil {
		answerCache = redisClient
	}
	processor := ingestion.NewProcessor(
		sqliteClient,
		neo4jClient,
		graphBuilder,
		llmClient,
		embedder,
		answerCache,
		segmenter.New(segmenter.Config{
			ChunkSize: cfg.Ingestion.ChunkSize,
			Overlap:   cfg.Ingestion.ChunkOverlap,
		}),
	)

	hub := handlers.NewProgressHub()

	if cfg.Ingestion.WatchDir != "" {
		inbox := watcher.New(cfg.Ingestion.WatchDir, sqliteClient, processor, hub.Publish)
		go func() {
			if err := inbox.Run(context.Background()); err != nil && err != context.Canceled {
				appLogger.Error("Inbox watcher stopped", zap.Error(err))
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{MaxRequestsPerMinute: 120})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: int64(cfg.Server.BodyLimit),
	}))

	contractHandler := handlers.NewContractHandler(
		sqliteClient, neo4jClient, processor, redisClient, hub, cfg.Ingestion.UploadDir)
	queryHandler := handlers.NewQueryHandler(llmClient, retriever, sqliteClient, redisClient)
	graphHandler := handlers.NewGraphHandler(neo4jClient, sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/contracts/upload", contractHandler.UploadContract)
	api.Get("/contracts", contractHandler.ListContracts)
	api.Get("/contracts/:id/status", contractHandler.GetContractStatus)
	api.Delete("/contracts/:id", contractHandler.DeleteContract)
	api.Get("/risks", contractHandler.ListRiskFlags)

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/history", queryHandler.GetQueryHistory)

	api.Get("/graph/entities", graphHandler.GetEntities)
	api.Get("/graph/stats", graphHandler.GetStats)
	api.Get("/health", graphHandler.Health)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress/:id", websocket.New(hub.HandleProgress))

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
