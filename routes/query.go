package routes

import (
	"net/http"
	"strings"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/models"
	"financial-transcripts-rag/services"
	"financial-transcripts-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupQueryRoutes registers the RAG endpoints: full question answering,
// raw similarity search, and topic insight generation.
func SetupQueryRoutes(router *gin.Engine, cfg *config.Config, pipeline *services.RAGPipeline, insights *services.InsightsService) {
	api := router.Group(cfg.APIPrefix)

	api.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			utils.RespondWithBadRequest(c, "Question cannot be empty", nil)
			return
		}
		if symbol := unsupportedSymbol(req.CompanyFilter); symbol != "" {
			utils.RespondWithBadRequest(c, "Unsupported company symbol: "+symbol, nil)
			return
		}

		logger.Info("Received RAG query", "question", headOf(req.Question, 100))
		c.JSON(http.StatusOK, pipeline.ProcessQuery(c.Request.Context(), &req))
	})

	api.POST("/search", func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			utils.RespondWithBadRequest(c, "Query cannot be empty", nil)
			return
		}
		if symbol := unsupportedSymbol(req.CompanyFilter); symbol != "" {
			utils.RespondWithBadRequest(c, "Unsupported company symbol: "+symbol, nil)
			return
		}

		resp, err := pipeline.Search(c.Request.Context(), &req)
		if err != nil {
			logger.Error("Vector search failed", "error", err)
			utils.RespondWithInternalError(c, "Internal server error during search", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	api.POST("/insights", func(c *gin.Context) {
		var req models.InsightsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			utils.RespondWithBadRequest(c, "Topic cannot be empty", nil)
			return
		}
		if symbol := unsupportedSymbol(req.Companies); symbol != "" {
			utils.RespondWithBadRequest(c, "Unsupported company symbol: "+symbol, nil)
			return
		}

		c.JSON(http.StatusOK, insights.GenerateInsights(c.Request.Context(), &req))
	})
}

// unsupportedSymbol returns the first symbol outside the corpus, or "".
func unsupportedSymbol(symbols []string) string {
	for _, symbol := range symbols {
		if !corpus.IsSupported(symbol) {
			return symbol
		}
	}
	return ""
}

func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
