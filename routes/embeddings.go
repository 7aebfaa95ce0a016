package routes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/models"
	"financial-transcripts-rag/services"
	"financial-transcripts-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupEmbeddingRoutes registers ingestion control: status tracking,
// background runs, collection clearing, and cache inspection.
func SetupEmbeddingRoutes(router *gin.Engine, cfg *config.Config, ingest *services.IngestService, embedder *services.EmbeddingService) {
	group := router.Group(cfg.APIPrefix + "/embeddings")

	group.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ingest.Status())
	})

	group.POST("/create", func(c *gin.Context) {
		var req models.CreateEmbeddingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resolved, err := ingest.Begin(req.Companies, req.ForceRecreate)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrIngestInProgress):
				utils.RespondWithConflict(c, "Embedding generation is already in progress")
			case errors.Is(err, services.ErrUnsupportedCompany):
				utils.RespondWithBadRequest(c, err.Error(), nil)
			default:
				utils.RespondWithInternalError(c, "Failed to start embedding generation", gin.H{"error": err.Error()})
			}
			return
		}

		// The run outlives the request, so it gets a fresh context.
		go func() {
			if err := ingest.Run(context.Background(), services.IngestOptions{
				Companies:     resolved,
				ForceRecreate: req.ForceRecreate,
				BatchSize:     req.BatchSize,
			}); err != nil {
				logger.Error("Embedding generation failed", "error", err)
			}
		}()

		var companies interface{} = "all"
		if len(req.Companies) > 0 {
			companies = resolved
		}
		batchSize := req.BatchSize
		if batchSize <= 0 {
			batchSize = cfg.BatchSize
		}

		logger.Info("Started embedding generation", "companies", companies, "force_recreate", req.ForceRecreate)
		c.JSON(http.StatusOK, models.CreateEmbeddingsResponse{
			Message:       "Embedding generation started",
			Status:        models.EmbeddingStatusStarting,
			ForceRecreate: req.ForceRecreate,
			Companies:     companies,
			BatchSize:     batchSize,
		})
	})

	group.DELETE("/clear", func(c *gin.Context) {
		ctx := c.Request.Context()
		symbol := strings.ToUpper(strings.TrimSpace(c.Query("company")))

		var message string
		if symbol != "" {
			if !corpus.IsSupported(symbol) {
				utils.RespondWithBadRequest(c, "Unsupported company symbol: "+symbol, nil)
				return
			}
			if err := ingest.ClearCompany(ctx, symbol); err != nil {
				logger.Error("Failed to clear company embeddings", "company", symbol, "error", err)
				message = fmt.Sprintf("Failed to clear embeddings for %s", symbol)
			} else {
				message = fmt.Sprintf("Cleared embeddings for %s", symbol)
			}
		} else {
			cleared := ingest.ClearAll(ctx)
			cacheCleared := 0
			if cache := embedder.Cache(); cache != nil {
				n, err := cache.Clear()
				if err != nil {
					logger.Warn("Failed to clear embedding cache", "error", err)
				}
				cacheCleared = n
			}
			message = fmt.Sprintf("Cleared embeddings for %d/%d companies and %d cached embeddings",
				cleared, len(corpus.Symbols()), cacheCleared)
		}

		company := symbol
		if company == "" {
			company = "all"
		}
		logger.Info("Embeddings cleared", "message", message)
		c.JSON(http.StatusOK, gin.H{
			"message":   message,
			"company":   company,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	group.GET("/cache/info", func(c *gin.Context) {
		info, err := embeddingCacheInfo(embedder)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve cache information", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})
}

// embeddingCacheInfo snapshots the disk cache for status endpoints.
func embeddingCacheInfo(embedder *services.EmbeddingService) (models.EmbeddingCacheInfo, error) {
	info := models.EmbeddingCacheInfo{ModelName: embedder.ModelName()}
	cache := embedder.Cache()
	if cache == nil {
		return info, nil
	}

	stats, err := cache.Stats()
	if err != nil {
		return info, err
	}
	info.CachedEmbeddings = stats.Entries
	info.CacheSizeMB = math.Round(stats.SizeMB()*100) / 100
	info.CacheDirectory = stats.Directory
	return info, nil
}
