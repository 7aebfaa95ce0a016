package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/models"
	"financial-transcripts-rag/services"
	"financial-transcripts-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupQueryLogRoutes registers the query history endpoints.
func SetupQueryLogRoutes(router *gin.Engine, cfg *config.Config, qlog *services.QueryLogService, exporter *services.ExportService) {
	group := router.Group(cfg.APIPrefix + "/queries")

	group.GET("/recent", func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				utils.RespondWithBadRequest(c, "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		if limit > 100 {
			limit = 100
		}

		entries, err := qlog.Recent(c.Request.Context(), limit)
		if err != nil {
			logger.Error("Failed to fetch recent queries", "error", err)
			utils.RespondWithInternalError(c, "Failed to retrieve recent queries", gin.H{"error": err.Error()})
			return
		}
		if entries == nil {
			entries = []models.QueryLogEntry{}
		}
		c.JSON(http.StatusOK, models.RecentQueriesResponse{Queries: entries, Total: len(entries)})
	})

	group.GET("/export", func(c *gin.Context) {
		req, err := exportRequestFromQuery(c)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}

		result, err := exporter.Export(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrNoQueryLogStorage) {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "service_unavailable", err.Error(), nil)
				return
			}
			logger.Error("Query log export failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to export query log", gin.H{"error": err.Error()})
			return
		}

		if result.RecordCount == 0 {
			c.JSON(http.StatusOK, gin.H{
				"message":      "No query log entries match the filters",
				"record_count": 0,
			})
			return
		}
		exporter.StreamExport(c, result)
	})
}

// exportRequestFromQuery maps URL query parameters onto an ExportRequest.
func exportRequestFromQuery(c *gin.Context) (*services.ExportRequest, error) {
	req := &services.ExportRequest{
		Format:  c.DefaultQuery("format", "json"),
		Company: c.Query("company"),
		Status:  c.Query("status"),
	}

	switch req.Format {
	case "json", "excel", "both":
	default:
		return nil, fmt.Errorf("format must be one of json, excel, both")
	}
	switch req.Status {
	case "", models.QueryStatusSuccess, models.QueryStatusNoContext, models.QueryStatusError:
	default:
		return nil, fmt.Errorf("status must be one of success, no_context, error")
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("from must be YYYY-MM-DD")
		}
		req.DateFrom = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("to must be YYYY-MM-DD")
		}
		// The bound is inclusive of the whole end day.
		req.DateTo = to.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("limit must be a positive integer")
		}
		req.Limit = limit
	}

	return req, nil
}
