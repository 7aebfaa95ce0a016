package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectName string
	Version     string
	Description string
	APIPrefix   string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini configuration
	GeminiAPIKey    string
	GeminiModel     string
	GeminiRPM       int
	Temperature     float64
	MaxOutputTokens int

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbeddingDimensions   int
	BatchSize             int
	EmbeddingCacheDir     string

	// Retrieval configuration
	MaxChunksPerQuery   int
	SimilarityThreshold float64
	MaxChunkSize        int

	// Vector store configuration
	StoreBackend string // "qdrant" (default), "memory"
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool

	// Transcript corpus
	TranscriptsDir string

	// MongoDB Configuration
	MongoURI string
	DBName   string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int
	QueryCacheTTL int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Scheduler
	RescanIntervalMinutes int
	AutoIngest            bool
	QueryLogRetentionDays int

	// Transcript fetcher
	FetchRenderJS  bool
	FetchTimeout   int
	FetchUserAgent string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		ProjectName: getEnv("PROJECT_NAME", "Financial Transcripts RAG API"),
		Version:     getEnv("VERSION", "1.0.0"),
		Description: getEnv("DESCRIPTION", "RAG application for querying financial earnings call transcripts"),
		APIPrefix:   getEnv("API_V1_STR", "/api/v1"),
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:8501,http://127.0.0.1:8501"), ","),

		// Gemini
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiRPM:       getEnvInt("GEMINI_RPM", 60),
		Temperature:     getEnvFloat64("TEMPERATURE", 0.7),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 2000),

		// Embeddings
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions:   getEnvInt("EMBEDDING_DIMENSIONS", 768),
		BatchSize:             getEnvInt("BATCH_SIZE", 32),
		EmbeddingCacheDir:     getEnv("EMBEDDING_CACHE_DIR", "./cache/embeddings"),

		// Retrieval
		MaxChunksPerQuery:   getEnvInt("MAX_CHUNKS_PER_QUERY", 5),
		SimilarityThreshold: getEnvFloat64("SIMILARITY_THRESHOLD", 0.7),
		MaxChunkSize:        getEnvInt("MAX_CHUNK_SIZE", 512),

		// Vector store
		StoreBackend: getEnv("STORE_BACKEND", "qdrant"),
		QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
		QdrantUseTLS: getEnvBool("QDRANT_USE_TLS", false),

		// Corpus
		TranscriptsDir: getEnv("TRANSCRIPTS_DIR", "./data/transcripts"),

		// MongoDB Configuration
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/transcripts_rag"),
		DBName:   getEnv("DB_NAME", "transcripts_rag"),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueryCacheTTL: getEnvInt("QUERY_CACHE_TTL", 300),

		// Rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Scheduler
		RescanIntervalMinutes: getEnvInt("RESCAN_INTERVAL_MINUTES", 30),
		AutoIngest:            getEnvBool("AUTO_INGEST", false),
		QueryLogRetentionDays: getEnvInt("QUERY_LOG_RETENTION_DAYS", 30),

		// Fetcher
		FetchRenderJS:  getEnvBool("FETCH_RENDER_JS", false),
		FetchTimeout:   getEnvInt("FETCH_TIMEOUT", 30),
		FetchUserAgent: getEnv("FETCH_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.EmbeddingsProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDINGS_PROVIDER=openai - set it in .env file")
	}

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be between 0.0 and 1.0")
	}

	return cfg, nil
}
