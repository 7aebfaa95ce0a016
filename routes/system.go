package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
	"financial-transcripts-rag/services"
	"financial-transcripts-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupSystemRoutes registers health probes and corpus metadata
// endpoints. These live outside the API prefix, matching the paths the
// dashboard expects.
func SetupSystemRoutes(router *gin.Engine, cfg *config.Config, companies *services.CompanyService, store vectorstore.Store, embedder *services.EmbeddingService) {
	router.GET("/health", func(c *gin.Context) {
		databaseStatus := "connected"
		if err := store.HealthCheck(c.Request.Context()); err != nil {
			logger.Error("Vector store health check failed", "error", err)
			databaseStatus = fmt.Sprintf("error: %v", err)
		}

		embeddingsStatus := fmt.Sprintf("ready (%s/%s)", embedder.Provider(), embedder.ModelName())

		status := "healthy"
		if strings.Contains(databaseStatus, "error") {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:           status,
			Timestamp:        time.Now().UTC(),
			Version:          cfg.Version,
			DatabaseStatus:   databaseStatus,
			EmbeddingsStatus: embeddingsStatus,
		})
	})

	router.GET("/companies", func(c *gin.Context) {
		c.JSON(http.StatusOK, companies.CompaniesOverview(c.Request.Context()))
	})

	router.GET("/transcripts/:company", func(c *gin.Context) {
		symbol := strings.ToUpper(strings.TrimSpace(c.Param("company")))

		resp, err := companies.CompanyTranscripts(c.Request.Context(), symbol)
		if err != nil {
			if errors.Is(err, services.ErrCompanyNotFound) {
				utils.RespondWithNotFound(c, fmt.Sprintf("Company %s not found", symbol))
				return
			}
			utils.RespondWithInternalError(c, "Internal server error", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET("/system/info", func(c *gin.Context) {
		cacheInfo, err := embeddingCacheInfo(embedder)
		if err != nil {
			logger.Warn("Failed to read embedding cache stats", "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"api": gin.H{
				"name":        cfg.ProjectName,
				"version":     cfg.Version,
				"description": cfg.Description,
			},
			"configuration": gin.H{
				"embedding_model":      embedder.ModelName(),
				"embedding_provider":   embedder.Provider(),
				"batch_size":           cfg.BatchSize,
				"max_chunks_per_query": cfg.MaxChunksPerQuery,
				"similarity_threshold": cfg.SimilarityThreshold,
				"temperature":          cfg.Temperature,
			},
			"embedding_cache": cacheInfo,
			"data_paths": gin.H{
				"transcripts": cfg.TranscriptsDir,
				"qdrant":      fmt.Sprintf("%s:%d", cfg.QdrantHost, cfg.QdrantPort),
				"embeddings":  cfg.EmbeddingCacheDir,
			},
			"supported_companies": corpus.Symbols(),
			"company_names":       corpus.SupportedCompanies,
		})
	})

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":      cfg.ProjectName,
			"version":      cfg.Version,
			"description":  cfg.Description,
			"docs_url":     "/info",
			"health_check": "/health",
			"api_prefix":   cfg.APIPrefix,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api": gin.H{
				"name":        cfg.ProjectName,
				"version":     cfg.Version,
				"description": cfg.Description,
			},
			"endpoints": gin.H{
				"query":             cfg.APIPrefix + "/query",
				"search":            cfg.APIPrefix + "/search",
				"insights":          cfg.APIPrefix + "/insights",
				"companies":         "/companies",
				"health":            "/health",
				"embeddings_status": cfg.APIPrefix + "/embeddings/status",
				"embeddings_create": cfg.APIPrefix + "/embeddings/create",
				"queries_recent":    cfg.APIPrefix + "/queries/recent",
				"queries_export":    cfg.APIPrefix + "/queries/export",
			},
			"features": []string{
				"RAG-based Q&A on financial transcripts",
				"Vector similarity search",
				"Multi-company filtering",
				"Date range filtering",
				"Automated insight generation",
				"Real-time embedding generation",
				"Query log export",
				"Comprehensive health monitoring",
			},
			"supported_companies": corpus.Symbols(),
			"data_coverage":       "2016-2020 earnings call transcripts",
			"models": gin.H{
				"embedding": embedder.ModelName(),
				"llm":       cfg.GeminiModel,
			},
		})
	})
}
