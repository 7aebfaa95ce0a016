package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"financial-transcripts-rag/internal/ai"
	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/queue"
	"financial-transcripts-rag/internal/telemetry"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/middleware"
	"financial-transcripts-rag/models"
	"financial-transcripts-rag/routes"
	"financial-transcripts-rag/services"
	"financial-transcripts-rag/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Telemetry: request metrics and OTLP traces
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}
	shutdownTracer, err := telemetry.InitTracer("financial-transcripts-rag")
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	// MongoDB backs query logs and ingest run history. The API serves
	// queries without it, so a failed connection only degrades logging.
	var db *mongo.Database
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		logger.Warn("MongoDB unavailable, query logging disabled", "error", err)
	} else {
		db = mongoClient.Database(cfg.DBName)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
	}

	// Redis backs the answer cache and rate limiting, both optional.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, answer cache and rate limiting disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// Vector store
	var store vectorstore.Store
	switch cfg.StoreBackend {
	case "memory":
		store = vectorstore.NewMemoryStore()
	default:
		store, err = vectorstore.NewQdrantStore(cfg)
		if err != nil {
			log.Fatal("Failed to connect to vector store:", err)
		}
	}
	defer store.Close()

	ensureCollections(store, cfg)

	// AI clients
	embeddingClient, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embeddingClient.Close()

	geminiClient, err := ai.NewGeminiClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	// Services
	cache, err := services.NewEmbeddingCache(cfg.EmbeddingCacheDir, embeddingClient.ModelName())
	if err != nil {
		logger.Warn("Embedding cache unavailable", "dir", cfg.EmbeddingCacheDir, "error", err)
		cache = nil
	}
	embedder := services.NewEmbeddingService(embeddingClient, cache, metrics, cfg.BatchSize)
	retriever := services.NewRetriever(store, embedder)
	qlogService := services.NewQueryLogService(db)
	pipeline := services.NewRAGPipeline(cfg, retriever, geminiClient, rdb, qlogService, metrics)
	insightsService := services.NewInsightsService(retriever, geminiClient, metrics)
	ingestService := services.NewIngestService(cfg, store, embedder, db)
	companyService := services.NewCompanyService(store)

	var queriesCol *mongo.Collection
	if db != nil {
		queriesCol = db.Collection("query_logs")
	}
	exportService := services.NewExportService(queriesCol)

	// Asynq client enqueues background ingests found by the rescan job.
	asynqClient := asynq.NewClient(asynqRedisOpt(cfg))
	defer asynqClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.ProcessTimeMiddleware())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered", "path", c.FullPath(), "panic", recovered)
		utils.RespondWithError(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(1 << 20))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// Setup routes
	routes.SetupQueryRoutes(router, cfg, pipeline, insightsService)
	routes.SetupEmbeddingRoutes(router, cfg, ingestService, embedder)
	routes.SetupSystemRoutes(router, cfg, companyService, store, embedder)
	routes.SetupQueryLogRoutes(router, cfg, qlogService, exportService)

	// Background jobs: corpus rescans and query log retention
	sched := services.NewScheduler()
	scheduleRescan(sched, cfg, ingestService, asynqClient)
	schedulePurge(sched, cfg, db, qlogService)
	sched.Start()

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "mode", cfg.GinMode, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	sched.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// ensureCollections creates one vector collection per supported company.
// Failures are not fatal: the health endpoint reports the store state and
// ingestion re-creates collections on demand.
func ensureCollections(store vectorstore.Store, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, symbol := range corpus.Symbols() {
		if err := store.EnsureCollection(ctx, corpus.CollectionName(symbol), cfg.EmbeddingDimensions); err != nil {
			logger.Warn("Failed to ensure vector collection", "company", symbol, "error", err)
			return
		}
	}
}

// scheduleRescan registers the periodic corpus rescan. When AUTO_INGEST is
// set, companies with unindexed transcripts are queued for ingestion,
// unless a run is already in progress.
func scheduleRescan(sched *services.Scheduler, cfg *config.Config, ingest *services.IngestService, client *asynq.Client) {
	if cfg.RescanIntervalMinutes <= 0 {
		return
	}

	interval := time.Duration(cfg.RescanIntervalMinutes) * time.Minute
	err := sched.ScheduleInterval("corpus-rescan", interval, func() error {
		ctx, cancel := context.WithTimeout(sched.Context(), 2*time.Minute)
		defer cancel()

		stale, err := ingest.StaleCompanies(ctx)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		logger.Info("Rescan found companies with unindexed transcripts", "companies", stale)

		if !cfg.AutoIngest {
			return nil
		}
		status := ingest.Status().Status
		if status == models.EmbeddingStatusProcessing || status == models.EmbeddingStatusStarting {
			return nil
		}

		task, err := queue.NewIngestCorpusTask(stale, false, cfg.BatchSize)
		if err != nil {
			return err
		}
		info, err := client.Enqueue(task)
		if err != nil {
			return err
		}
		logger.Info("Queued corpus ingest", "task_id", info.ID, "companies", stale)
		return nil
	})
	if err != nil {
		logger.Warn("Failed to schedule corpus rescan", "error", err)
	}
}

// schedulePurge registers the daily query log retention job.
func schedulePurge(sched *services.Scheduler, cfg *config.Config, db *mongo.Database, qlog *services.QueryLogService) {
	if db == nil || cfg.QueryLogRetentionDays <= 0 {
		return
	}

	err := sched.ScheduleInterval("querylog-purge", 24*time.Hour, func() error {
		ctx, cancel := context.WithTimeout(sched.Context(), time.Minute)
		defer cancel()

		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.QueryLogRetentionDays)
		purged, err := qlog.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		if purged > 0 {
			logger.Info("Purged expired query log entries", "count", purged)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Failed to schedule query log purge", "error", err)
	}
}

func asynqRedisOpt(cfg *config.Config) asynq.RedisConnOpt {
	if opt, err := asynq.ParseRedisURI(cfg.RedisURL); err == nil {
		return opt
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
