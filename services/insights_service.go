package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"financial-transcripts-rag/internal/ai"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/telemetry"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
)

// Insight retrieval uses a looser threshold than Q&A so thematic
// queries still pull enough material.
const insightsThreshold = 0.6

const (
	noInsightsSummary     = "No relevant information found for this topic."
	summaryUnavailable    = "Unable to generate summary."
	insightsErrorTemplate = "Error generating insights: %v"
)

// InsightsService generates a topic summary, key points, and sentiment
// from retrieved transcript excerpts.
type InsightsService struct {
	retriever *Retriever
	generator AnswerGenerator
	metrics   *telemetry.Metrics
}

func NewInsightsService(retriever *Retriever, generator AnswerGenerator, metrics *telemetry.Metrics) *InsightsService {
	return &InsightsService{retriever: retriever, generator: generator, metrics: metrics}
}

// GenerateInsights never fails outright: retrieval errors are reported
// inside the response, and a failing sub-step degrades to its fallback.
func (s *InsightsService) GenerateInsights(ctx context.Context, req *models.InsightsRequest) *models.InsightsResponse {
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = 10
	}
	if maxSources > 20 {
		maxSources = 20
	}

	logger.Info("Generating insights", "topic", truncate(req.Topic, 100))

	retrieval, err := s.retriever.Retrieve(ctx, req.Topic, RetrievalOptions{
		Companies:  req.Companies,
		MaxResults: maxSources,
		Threshold:  insightsThreshold,
		Dates:      dateFilterFrom(req.DateRange),
	})
	if err != nil {
		logger.Error("Insights retrieval failed", "error", err)
		return &models.InsightsResponse{
			Topic:     req.Topic,
			Summary:   fmt.Sprintf(insightsErrorTemplate, err),
			KeyPoints: []string{},
			Sentiment: models.SentimentInfo{Sentiment: "unknown", Confidence: 0.0},
		}
	}

	chunks := retrieval.Chunks
	if len(chunks) == 0 {
		return &models.InsightsResponse{
			Topic:     req.Topic,
			Summary:   noInsightsSummary,
			KeyPoints: []string{},
			Sentiment: models.SentimentInfo{Sentiment: "neutral", Confidence: 0.0},
		}
	}

	sources := promptSources(chunks)

	summary := s.generateSummary(ctx, req.Topic, sources)
	keyPoints := s.extractKeyPoints(ctx, sources, 5)
	sentiment := s.analyzeSentiment(ctx, combineChunks(chunks, 3))

	return &models.InsightsResponse{
		Topic:            req.Topic,
		Summary:          summary,
		KeyPoints:        keyPoints,
		Sentiment:        sentiment,
		SourcesCount:     len(chunks),
		CompaniesCovered: uniqueCompanies(chunks),
		DateRangeCovered: dateRangeOf(chunks),
	}
}

func (s *InsightsService) generateSummary(ctx context.Context, topic string, sources []ai.SourceChunk) string {
	text, tokens, err := s.generator.GenerateText(ctx, ai.BuildSummaryPrompt(topic, sources), 0.7)
	s.recordTokens(tokens)
	if err != nil {
		logger.Error("Summary generation failed", "error", err)
		return summaryUnavailable
	}
	if text == "" {
		return summaryUnavailable
	}
	return text
}

func (s *InsightsService) extractKeyPoints(ctx context.Context, sources []ai.SourceChunk, maxPoints int) []string {
	text, tokens, err := s.generator.GenerateText(ctx, ai.BuildKeyPointsPrompt(sources, maxPoints), 0.7)
	s.recordTokens(tokens)
	if err != nil {
		logger.Error("Key point extraction failed", "error", err)
		return []string{}
	}
	points := ai.ParseKeyPoints(text, maxPoints)
	if points == nil {
		return []string{}
	}
	return points
}

func (s *InsightsService) analyzeSentiment(ctx context.Context, text string) models.SentimentInfo {
	resp, tokens, err := s.generator.GenerateText(ctx, ai.BuildSentimentPrompt(text), 0.7)
	s.recordTokens(tokens)
	if err != nil {
		logger.Error("Sentiment analysis failed", "error", err)
		return sentimentInfo(ai.SentimentUnknown())
	}
	return sentimentInfo(ai.ParseSentiment(resp))
}

func (s *InsightsService) recordTokens(tokens int) {
	if s.metrics != nil && tokens > 0 {
		s.metrics.RecordTokensUsed(int64(tokens), s.generator.Model())
	}
}

func sentimentInfo(result ai.SentimentResult) models.SentimentInfo {
	return models.SentimentInfo{
		Sentiment:  result.Sentiment,
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	}
}

// combineChunks joins the content of the first n chunks for sentiment
// analysis.
func combineChunks(chunks []vectorstore.SearchResult, n int) string {
	if len(chunks) < n {
		n = len(chunks)
	}
	parts := make([]string, 0, n)
	for _, chunk := range chunks[:n] {
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, " ")
}

func uniqueCompanies(chunks []vectorstore.SearchResult) []string {
	seen := make(map[string]bool)
	var companies []string
	for _, chunk := range chunks {
		if chunk.Company == "" || seen[chunk.Company] {
			continue
		}
		seen[chunk.Company] = true
		companies = append(companies, chunk.Company)
	}
	sort.Strings(companies)
	return companies
}

func dateRangeOf(chunks []vectorstore.SearchResult) *models.DateRange {
	var dates []string
	for _, chunk := range chunks {
		if chunk.Date != "" && chunk.Date != corpus.DateUnknown {
			dates = append(dates, chunk.Date)
		}
	}
	if len(dates) == 0 {
		return &models.DateRange{}
	}
	sort.Strings(dates)
	return &models.DateRange{Start: dates[0], End: dates[len(dates)-1]}
}
