package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"financial-transcripts-rag/internal/ai"
	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/telemetry"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
)

// AnswerGenerator is the LLM surface the pipeline needs, as implemented
// by ai.GeminiClient.
type AnswerGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, int, error)
	Model() string
}

// RAGPipeline orchestrates retrieval and generation for a query.
// Failures never surface as transport errors: the response carries an
// explanatory answer instead.
type RAGPipeline struct {
	cfg       *config.Config
	retriever *Retriever
	generator AnswerGenerator
	rdb       *redis.Client
	qlog      *QueryLogService
	metrics   *telemetry.Metrics
}

func NewRAGPipeline(cfg *config.Config, retriever *Retriever, generator AnswerGenerator, rdb *redis.Client, qlog *QueryLogService, metrics *telemetry.Metrics) *RAGPipeline {
	return &RAGPipeline{
		cfg:       cfg,
		retriever: retriever,
		generator: generator,
		rdb:       rdb,
		qlog:      qlog,
		metrics:   metrics,
	}
}

// ProcessQuery runs the full retrieve-then-generate flow.
func (p *RAGPipeline) ProcessQuery(ctx context.Context, req *models.QueryRequest) *models.QueryResponse {
	start := time.Now()

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = p.cfg.MaxChunksPerQuery
	}
	threshold := p.cfg.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	temperature := float32(p.cfg.Temperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	logger.Info("Processing RAG query", "question", truncate(req.Question, 100))

	cacheKey := p.queryCacheKey(req, maxResults, threshold, temperature)
	if resp, ok := p.cachedResponse(ctx, cacheKey); ok {
		resp.Metadata.Cached = true
		resp.Metadata.ProcessingTime = formatSeconds(time.Since(start))
		p.recordQuery(start, len(resp.Sources), models.QueryStatusSuccess)
		p.logQuery(req, resp, 0, models.QueryStatusSuccess, true, time.Since(start))
		return resp
	}

	retrieval, err := p.retriever.Retrieve(ctx, req.Question, RetrievalOptions{
		Companies:  req.CompanyFilter,
		MaxResults: maxResults,
		Threshold:  threshold,
		Dates:      dateFilterFrom(req.DateRange),
	})
	if err != nil {
		logger.Error("RAG retrieval failed", "error", err)
		resp := p.errorResponse(req, start, maxResults, threshold, err)
		p.recordQuery(start, 0, models.QueryStatusError)
		p.logQuery(req, resp, 0, models.QueryStatusError, false, time.Since(start))
		return resp
	}

	var (
		answer string
		tokens int
		status string
	)
	if len(retrieval.Chunks) == 0 {
		answer = ai.NoContextAnswer(req.Question)
		status = models.QueryStatusNoContext
	} else {
		prompt := ai.BuildRAGPrompt(req.Question, promptSources(retrieval.Chunks))
		answer, tokens, err = p.generator.GenerateText(ctx, prompt, temperature)
		if err != nil {
			logger.Error("RAG generation failed", "error", err)
			resp := p.errorResponse(req, start, maxResults, threshold, err)
			p.recordQuery(start, 0, models.QueryStatusError)
			p.logQuery(req, resp, 0, models.QueryStatusError, false, time.Since(start))
			return resp
		}
		if answer == "" {
			answer = ai.EmptyGenerationAnswer
		}
		status = models.QueryStatusSuccess
	}

	resp := &models.QueryResponse{
		Query:   req.Question,
		Answer:  answer,
		Sources: formatSources(retrieval.Chunks),
		Metadata: models.QueryMetadata{
			ProcessingTime:      formatSeconds(time.Since(start)),
			TotalChunksSearched: retrieval.TotalSearched,
			ModelUsed:           p.retriever.embedder.ModelName(),
			LLMModel:            p.generator.Model(),
			SimilarityThreshold: threshold,
			MaxResults:          maxResults,
		},
	}

	p.storeCachedResponse(ctx, cacheKey, resp)
	p.recordQuery(start, len(resp.Sources), status)
	if tokens > 0 && p.metrics != nil {
		p.metrics.RecordTokensUsed(int64(tokens), p.generator.Model())
	}
	p.logQuery(req, resp, tokens, status, false, time.Since(start))

	logger.Info("RAG query completed", "duration", resp.Metadata.ProcessingTime, "sources", len(resp.Sources))
	return resp
}

// Search runs a plain similarity search without generation.
func (p *RAGPipeline) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 50 {
		maxResults = 50
	}
	threshold := 0.5
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	retrieval, err := p.retriever.Retrieve(ctx, req.Query, RetrievalOptions{
		Companies:  req.CompanyFilter,
		MaxResults: maxResults,
		Threshold:  threshold,
	})
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(retrieval.Chunks))
	for _, chunk := range retrieval.Chunks {
		results = append(results, models.SearchResult{
			DocumentID:      chunk.DocumentID,
			Company:         chunk.Company,
			Date:            chunk.Date,
			Content:         chunk.Content,
			SimilarityScore: roundScore(chunk.Similarity),
			Metadata: &models.SearchResultMeta{
				Quarter:    chunk.Quarter,
				ChunkIndex: chunk.ChunkIndex,
				Filename:   chunk.Filename,
			},
		})
	}

	return &models.SearchResponse{
		Query:          req.Query,
		Results:        results,
		TotalResults:   len(results),
		ProcessingTime: formatSeconds(time.Since(start)),
	}, nil
}

func (p *RAGPipeline) errorResponse(req *models.QueryRequest, start time.Time, maxResults int, threshold float64, err error) *models.QueryResponse {
	return &models.QueryResponse{
		Query:   req.Question,
		Answer:  fmt.Sprintf("An error occurred while processing your query: %v", err),
		Sources: []models.SourceDocument{},
		Metadata: models.QueryMetadata{
			ProcessingTime:      formatSeconds(time.Since(start)),
			TotalChunksSearched: 0,
			ModelUsed:           p.retriever.embedder.ModelName(),
			LLMModel:            p.generator.Model(),
			SimilarityThreshold: threshold,
			MaxResults:          maxResults,
		},
	}
}

// queryCacheKey hashes the normalized request so equivalent queries
// share a cache entry.
func (p *RAGPipeline) queryCacheKey(req *models.QueryRequest, maxResults int, threshold float64, temperature float32) string {
	companies := make([]string, 0, len(req.CompanyFilter))
	for _, c := range req.CompanyFilter {
		companies = append(companies, strings.ToUpper(strings.TrimSpace(c)))
	}
	sort.Strings(companies)

	var dateStart, dateEnd string
	if req.DateRange != nil {
		dateStart = req.DateRange.Start
		dateEnd = req.DateRange.End
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"question":    strings.TrimSpace(req.Question),
		"companies":   companies,
		"date_start":  dateStart,
		"date_end":    dateEnd,
		"max_results": maxResults,
		"threshold":   threshold,
		"temperature": temperature,
	})
	sum := md5.Sum(payload)
	return "querycache:" + hex.EncodeToString(sum[:])
}

func (p *RAGPipeline) cachedResponse(ctx context.Context, key string) (*models.QueryResponse, bool) {
	if p.rdb == nil || p.cfg.QueryCacheTTL <= 0 {
		return nil, false
	}

	data, err := p.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		p.recordCacheEvent(false)
		return nil, false
	}
	if err != nil {
		logger.Warn("Query cache read failed", "error", err)
		return nil, false
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warn("Discarding corrupt query cache entry", "error", err)
		return nil, false
	}
	p.recordCacheEvent(true)
	return &resp, true
}

func (p *RAGPipeline) storeCachedResponse(ctx context.Context, key string, resp *models.QueryResponse) {
	if p.rdb == nil || p.cfg.QueryCacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	ttl := time.Duration(p.cfg.QueryCacheTTL) * time.Second
	if err := p.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warn("Query cache write failed", "error", err)
	}
}

func (p *RAGPipeline) recordQuery(start time.Time, chunks int, status string) {
	if p.metrics != nil {
		p.metrics.RecordQuery(time.Since(start).Seconds(), chunks, status)
	}
}

func (p *RAGPipeline) recordCacheEvent(hit bool) {
	if p.metrics != nil {
		p.metrics.RecordCacheEvent("queries", hit)
	}
}

func (p *RAGPipeline) logQuery(req *models.QueryRequest, resp *models.QueryResponse, tokens int, status string, cached bool, elapsed time.Duration) {
	if p.qlog == nil {
		return
	}

	companies := make([]string, 0, len(req.CompanyFilter))
	for _, c := range req.CompanyFilter {
		companies = append(companies, strings.ToUpper(strings.TrimSpace(c)))
	}

	entry := &models.QueryLogEntry{
		Question:       req.Question,
		Answer:         resp.Answer,
		Companies:      companies,
		SourceCount:    len(resp.Sources),
		TokensUsed:     tokens,
		ProcessingSecs: elapsed.Seconds(),
		Cached:         cached,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
	go p.qlog.Record(entry)
}

func dateFilterFrom(dr *models.DateRange) *vectorstore.DateFilter {
	if dr == nil || (dr.Start == "" && dr.End == "") {
		return nil
	}
	return &vectorstore.DateFilter{Start: dr.Start, End: dr.End}
}

func promptSources(chunks []vectorstore.SearchResult) []ai.SourceChunk {
	sources := make([]ai.SourceChunk, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, ai.SourceChunk{
			Company:    chunk.Company,
			Date:       chunk.Date,
			Quarter:    chunk.Quarter,
			Content:    chunk.Content,
			Similarity: chunk.Similarity,
		})
	}
	return sources
}

func formatSources(chunks []vectorstore.SearchResult) []models.SourceDocument {
	sources := make([]models.SourceDocument, 0, len(chunks))
	for _, chunk := range chunks {
		company := chunk.Company
		if company == "" {
			company = "Unknown"
		}
		date := chunk.Date
		if date == "" {
			date = "Unknown"
		}
		quarter := chunk.Quarter
		if quarter == "" || quarter == "Unknown" {
			quarter = quarterOrEmpty(date)
		}

		sources = append(sources, models.SourceDocument{
			Company:         company,
			Date:            date,
			Quarter:         quarter,
			Chunk:           chunk.Content,
			SimilarityScore: roundScore(chunk.Similarity),
			DocumentID:      chunk.DocumentID,
			ChunkIndex:      chunk.ChunkIndex,
		})
	}
	return sources
}

func quarterOrEmpty(date string) string {
	q := corpus.QuarterFromDate(date)
	if q == "Unknown" {
		return ""
	}
	return q
}

func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
