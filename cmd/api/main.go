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

	"github.com/datachat/backend/internal/analysis"
	"github.com/datachat/backend/internal/api/handlers"
	"github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/graph"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/middleware/ratelimit"
	"github.com/datachat/backend/internal/middleware/security"
	"github.com/datachat/backend/internal/middleware/validation"
	"github.com/datachat/backend/internal/rag"
	"github.com/datachat/backend/internal/sandbox"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/internal/storage/mongo"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/internal/vector"
	"github.com/datachat/backend/internal/vector/chroma"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/internal/worker"
	"github.com/datachat/backend/pkg/config"
	appLogger "github.com/datachat/backend/pkg/logger"
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

	appLogger.Info("Starting AI Data Scientist API Server")

	metrics.Init()

	var store storage.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		store = sqliteClient
	default:
		mongoClient, err := mongo.NewClient(cfg.Mongo)
		if err != nil {
			appLogger.Fatal("Failed to create MongoDB client", zap.Error(err))
		}
		store = mongoClient
	}
	defer store.Close(context.Background())

	llmClient := llm.NewClient(cfg.LLM)

	var vectorStore vector.Store
	if cfg.Vector.Driver == "milvus" {
		vectorStore, err = milvus.NewClient(cfg.Milvus, llmClient)
	} else {
		vectorStore, err = chroma.NewClient(cfg.Chroma)
	}
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	var graphBuilder *graph.Builder
	if cfg.Neo4j.Enabled {
		graphClient, err := graph.NewClient(cfg.Neo4j)
		if err != nil {
			appLogger.Warn("Neo4j unavailable, variable graph disabled", zap.Error(err))
		} else {
			graphBuilder = graph.NewBuilder(graphClient)
			defer graphClient.Close(context.Background())
		}
	}

	runner := sandbox.NewRunner(cfg.Sandbox)
	engine := analysis.NewEngine(runner)
	reporter := analysis.NewReporter(store)
	ragService := rag.NewService(vectorStore, cacheClient)

	var publisher *worker.Publisher
	var analysisWorker *worker.AnalysisWorker
	if cfg.RabbitMQ.Enabled {
		conn, err := worker.Connect(cfg.RabbitMQ.URL)
		if err != nil {
			appLogger.Warn("RabbitMQ unavailable, running analyses inline", zap.Error(err))
		} else {
			defer conn.Close()
			publisher = worker.NewPublisher(conn, cfg.RabbitMQ.Queue)
			analysisWorker = worker.NewAnalysisWorker(conn, store, reporter, cfg.RabbitMQ.Queue)
			if err := analysisWorker.Start(context.Background()); err != nil {
				appLogger.Warn("Failed to start analysis worker", zap.Error(err))
				publisher = nil
				analysisWorker = nil
			}
		}
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
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Logger:               appLogger.GetLogger(),
		})
		app.Use(rateLimiter.Middleware())
	}

	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
		Logger:        appLogger.GetLogger(),
	}))
	app.Use(metrics.Middleware())

	sessionHandler := handlers.NewSessionHandler(store, ragService, reporter, graphBuilder, cacheClient, publisher)
	chatHandler := handlers.NewChatHandler(store, ragService, llmClient, graphBuilder, cacheClient)
	executeHandler := handlers.NewExecuteHandler(store, engine)
	analysisHandler := handlers.NewAnalysisHandler(store, llmClient, graphBuilder, cacheClient)
	connectionHandler := handlers.NewConnectionHandler(llmClient)
	wsHandler := handlers.NewWebSocketHandler(store, ragService, llmClient, graphBuilder, cacheClient)

	api := app.Group("/api")

	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "AI Data Scientist API",
		})
	})

	api.Post("/sessions", sessionHandler.CreateSession)
	api.Get("/sessions", sessionHandler.ListSessions)
	api.Get("/sessions/:id", sessionHandler.GetSession)
	api.Get("/sessions/:id/messages", sessionHandler.ListMessages)

	api.Post("/sessions/:id/chat", chatHandler.HandleChat)

	api.Post("/sessions/:id/execute", executeHandler.Execute)
	api.Post("/sessions/:id/execute-sectioned", executeHandler.ExecuteSectioned)

	api.Get("/sessions/:id/structured-analyses", analysisHandler.ListStructuredAnalyses)
	api.Get("/sessions/:id/structured-analyses/:analysisID", analysisHandler.GetStructuredAnalysis)
	api.Post("/sessions/:id/suggest-analysis", analysisHandler.SuggestAnalysis)
	api.Get("/sessions/:id/analysis-history", analysisHandler.AnalysisHistory)
	api.Post("/sessions/:id/save-analysis", analysisHandler.SaveAnalysis)
	api.Get("/sessions/:id/comprehensive-analysis", analysisHandler.GetComprehensiveAnalysis)

	api.Post("/test-connection", connectionHandler.TestConnection)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := store.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id/chat", websocket.New(wsHandler.HandleConnection))

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
	if analysisWorker != nil {
		analysisWorker.Close()
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	app.Shutdown()
	appLogger.Info("Server stopped")
}
