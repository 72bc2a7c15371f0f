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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/docuchat/backend/internal/api/handlers"
	"github.com/docuchat/backend/internal/cache/redis"
	"github.com/docuchat/backend/internal/chat"
	"github.com/docuchat/backend/internal/extract"
	"github.com/docuchat/backend/internal/ingestion"
	"github.com/docuchat/backend/internal/llm"
	"github.com/docuchat/backend/internal/metrics"
	"github.com/docuchat/backend/internal/middleware/ratelimit"
	"github.com/docuchat/backend/internal/middleware/security"
	"github.com/docuchat/backend/internal/retrieval"
	"github.com/docuchat/backend/internal/storage/sqlite"
	"github.com/docuchat/backend/internal/vector/milvus"
	"github.com/docuchat/backend/pkg/config"
	appLogger "github.com/docuchat/backend/pkg/logger"
	"github.com/docuchat/backend/pkg/retry"
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

	appLogger.Info("Starting DocuChat API Server")

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

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer bootCancel()

	milvusClient, err := retry.DoWithResult(bootCtx, retry.DefaultConfig(), func() (*milvus.Client, error) {
		return milvus.NewClient(bootCtx, cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Milvus", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(bootCtx)
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	var embedder llm.Embedder = llmClient
	redisClient, err := retry.DoWithResult(bootCtx, retry.DefaultConfig(), func() (*redis.Client, error) {
		return redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	})
	if err != nil {
		appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		embedder = llm.NewCachedEmbedder(llmClient, redisClient, time.Duration(cfg.Redis.TTLMinutes)*time.Minute)
	}

	extractor := extract.NewPDFExtractor()

	processor := ingestion.NewProcessor(
		milvusClient,
		embedder,
		extractor,
		cfg.Ingestion.ChunkSize,
		cfg.Ingestion.ChunkOverlap,
		cfg.Ingestion.DeleteBatchSize,
		cfg.Ingestion.MaxDeleteBatches,
	)
	retrievalEngine := retrieval.NewEngine(milvusClient, embedder)
	chatEngine := chat.NewEngine(retrievalEngine, sqliteClient, llmClient, chat.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		HistoryLimit:        cfg.Retrieval.HistoryLimit,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.Headers())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.Middleware())

	documentHandler := handlers.NewDocumentHandler(processor)
	promptHandler := handlers.NewPromptHandler(chatEngine, sqliteClient)

	api := app.Group("/api")

	api.Post("/documents", documentHandler.Upload)
	api.Get("/documents", documentHandler.List)
	api.Delete("/documents/:file_hash", documentHandler.Delete)

	api.Post("/prompt", promptHandler.Prompt)
	api.Delete("/conversations/:id", promptHandler.DeleteConversation)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

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
