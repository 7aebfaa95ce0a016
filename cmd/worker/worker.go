package main

import (
	"context"
	"log"
	"time"

	"financial-transcripts-rag/internal/ai"
	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/fetcher"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/queue"
	"financial-transcripts-rag/internal/telemetry"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/services"

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

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// MongoDB records ingest run history; the worker runs without it.
	var db *mongo.Database
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		logger.Warn("MongoDB unavailable, ingest run history disabled", "error", err)
	} else {
		db = mongoClient.Database(cfg.DBName)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
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

	// Embedding client and ingest service
	embeddingClient, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embeddingClient.Close()

	cache, err := services.NewEmbeddingCache(cfg.EmbeddingCacheDir, embeddingClient.ModelName())
	if err != nil {
		logger.Warn("Embedding cache unavailable", "dir", cfg.EmbeddingCacheDir, "error", err)
		cache = nil
	}
	embedder := services.NewEmbeddingService(embeddingClient, cache, metrics, cfg.BatchSize)
	ingestService := services.NewIngestService(cfg, store, embedder, db)
	transcriptFetcher := fetcher.New(cfg.TranscriptsDir, cfg.FetchRenderJS)

	// Create Asynq server
	server := asynq.NewServer(
		asynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					"type", task.Type(),
					"payload", string(task.Payload()),
					"error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(ingestService, transcriptFetcher)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestCompany, processor.HandleIngestCompany)
	mux.HandleFunc(queue.TaskIngestCorpus, processor.HandleIngestCorpus)
	mux.HandleFunc(queue.TaskFetchTranscript, processor.HandleFetchTranscript)

	logger.Info("Starting worker",
		"concurrency", 20,
		"queues", "critical(6), default(3), low(1)",
		"redis", cfg.RedisURL)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
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
