package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
)

// ErrCompanyNotFound is returned when a requested symbol is not part of
// the supported corpus.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyService reports per-company corpus statistics and collection
// health from the vector store.
type CompanyService struct {
	store vectorstore.Store
}

func NewCompanyService(store vectorstore.Store) *CompanyService {
	return &CompanyService{store: store}
}

// CompanyStats gathers transcript and chunk counts for one company.
// Store failures degrade to a zeroed entry instead of an error.
func (s *CompanyService) CompanyStats(ctx context.Context, symbol string) models.CompanyStats {
	collection := corpus.CollectionName(symbol)

	chunkCount, err := s.store.Count(ctx, collection)
	if err != nil {
		logger.Error("Failed to count collection", "company", symbol, "error", err)
		return zeroStats(symbol)
	}
	if chunkCount == 0 {
		return zeroStats(symbol)
	}

	docs, err := s.store.ListDocuments(ctx, collection)
	if err != nil {
		logger.Error("Failed to list documents", "company", symbol, "error", err)
		return zeroStats(symbol)
	}

	stats := models.CompanyStats{
		Company:         symbol,
		Name:            corpus.CompanyName(symbol),
		TranscriptCount: len(docs),
		ChunkCount:      chunkCount,
	}
	if dates := documentDates(docs); len(dates) > 0 {
		stats.DateRange = &models.DateRange{Start: dates[0], End: dates[len(dates)-1]}
		stats.LatestTranscript = dates[len(dates)-1]
	}
	return stats
}

// AllCompaniesStats returns stats for every supported company in symbol
// order.
func (s *CompanyService) AllCompaniesStats(ctx context.Context) []models.CompanyStats {
	stats := make([]models.CompanyStats, 0, len(corpus.Symbols()))
	for _, symbol := range corpus.Symbols() {
		stats = append(stats, s.CompanyStats(ctx, symbol))
	}
	return stats
}

// CompaniesOverview assembles the companies listing with corpus totals.
func (s *CompanyService) CompaniesOverview(ctx context.Context) *models.CompaniesResponse {
	all := s.AllCompaniesStats(ctx)

	companies := make([]models.CompanyInfo, 0, len(all))
	totalTranscripts := 0
	for _, stats := range all {
		dateRange := stats.DateRange
		if dateRange == nil {
			dateRange = &models.DateRange{}
		}
		companies = append(companies, models.CompanyInfo{
			Symbol:           stats.Company,
			Name:             stats.Name,
			TranscriptCount:  stats.TranscriptCount,
			DateRange:        dateRange,
			LatestTranscript: stats.LatestTranscript,
		})
		totalTranscripts += stats.TranscriptCount
	}

	return &models.CompaniesResponse{
		Companies:        companies,
		TotalCompanies:   len(companies),
		TotalTranscripts: totalTranscripts,
	}
}

// CollectionHealth checks whether a company's collection holds data.
func (s *CompanyService) CollectionHealth(ctx context.Context, symbol string) models.CollectionHealth {
	collection := corpus.CollectionName(symbol)
	health := models.CollectionHealth{
		Company:        symbol,
		CollectionName: collection,
		LastChecked:    time.Now().UTC(),
	}

	count, err := s.store.Count(ctx, collection)
	if err != nil {
		logger.Error("Collection health check failed", "company", symbol, "error", err)
		health.Status = "error"
		health.Error = err.Error()
		return health
	}

	health.DocumentCount = count
	if count > 0 {
		health.Status = "healthy"
	} else {
		health.Status = "empty"
	}
	return health
}

// CompanyTranscripts builds the detailed per-company view including the
// indexed transcript list. Returns ErrCompanyNotFound for symbols
// outside the corpus.
func (s *CompanyService) CompanyTranscripts(ctx context.Context, symbol string) (*models.CompanyTranscriptsResponse, error) {
	if !corpus.IsSupported(symbol) {
		return nil, ErrCompanyNotFound
	}

	resp := &models.CompanyTranscriptsResponse{
		Company:        symbol,
		Name:           corpus.CompanyName(symbol),
		Statistics:     s.CompanyStats(ctx, symbol),
		Health:         s.CollectionHealth(ctx, symbol),
		CollectionName: corpus.CollectionName(symbol),
	}

	docs, err := s.store.ListDocuments(ctx, corpus.CollectionName(symbol))
	if err != nil {
		logger.Error("Failed to list transcripts", "company", symbol, "error", err)
		return resp, nil
	}
	for _, doc := range docs {
		resp.Transcripts = append(resp.Transcripts, models.TranscriptInfo{
			DocumentID: doc.DocumentID,
			Filename:   doc.Filename,
			Date:       doc.Date,
			Quarter:    quarterOrEmpty(doc.Date),
			ChunkCount: doc.ChunkCount,
		})
	}
	return resp, nil
}

func zeroStats(symbol string) models.CompanyStats {
	return models.CompanyStats{
		Company: symbol,
		Name:    corpus.CompanyName(symbol),
	}
}

func documentDates(docs []vectorstore.DocumentInfo) []string {
	var dates []string
	for _, doc := range docs {
		if doc.Date != "" && doc.Date != corpus.DateUnknown {
			dates = append(dates, doc.Date)
		}
	}
	sort.Strings(dates)
	return dates
}
