package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"financial-transcripts-rag/internal/chunker"
	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
)

// ErrIngestInProgress is returned when a second ingestion run is
// requested while one is still active.
var ErrIngestInProgress = errors.New("embedding generation is already in progress")

// ErrUnsupportedCompany is returned for ticker symbols outside the
// corpus.
var ErrUnsupportedCompany = errors.New("unsupported company symbol")

// IngestOptions control a single ingestion run.
type IngestOptions struct {
	Companies     []string
	ForceRecreate bool
	BatchSize     int
}

// IngestService chunks transcripts, embeds them, and writes the vectors
// into one collection per company. Only one run may be active at a time.
type IngestService struct {
	cfg      *config.Config
	store    vectorstore.Store
	embedder *EmbeddingService
	splitter *chunker.Chunker
	runs     *mongo.Collection

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	status    models.EmbeddingStatus
}

func NewIngestService(cfg *config.Config, store vectorstore.Store, embedder *EmbeddingService, db *mongo.Database) *IngestService {
	svc := &IngestService{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		splitter: chunker.New(cfg.MaxChunkSize),
		status:   models.EmbeddingStatus{Status: models.EmbeddingStatusIdle},
	}
	if db != nil {
		svc.runs = db.Collection("ingest_runs")
	}
	return svc
}

// Begin validates the company list and claims the run slot. The caller
// is responsible for invoking Run afterwards, usually in a goroutine.
func (s *IngestService) Begin(companies []string, force bool) ([]string, error) {
	resolved, err := resolveCompanies(companies)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrIngestInProgress
	}
	s.running = true
	s.startedAt = time.Now()
	s.status = models.EmbeddingStatus{Status: models.EmbeddingStatusStarting}
	return resolved, nil
}

// Run executes a full ingestion pass. Begin must have succeeded first.
func (s *IngestService) Run(ctx context.Context, opts IngestOptions) (err error) {
	defer func() {
		s.mu.Lock()
		s.running = false
		if err != nil {
			s.status.Status = models.EmbeddingStatusError
			s.status.Error = err.Error()
			s.status.CurrentCompany = ""
			s.status.EstimatedTimeRemaining = ""
		}
		s.mu.Unlock()
	}()

	embedder := s.embedder.WithBatchSize(opts.BatchSize)

	type companyBatch struct {
		symbol string
		files  []corpus.TranscriptFile
	}
	var batches []companyBatch
	total := 0
	for _, symbol := range opts.Companies {
		files, err := corpus.CompanyFiles(s.cfg.TranscriptsDir, symbol)
		if errors.Is(err, corpus.ErrNoTranscriptDir) {
			logger.Warn("Skipping company with no transcript directory", "company", symbol)
			continue
		}
		if err != nil {
			return err
		}
		batches = append(batches, companyBatch{symbol: symbol, files: files})
		total += len(files)
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.status.Status = models.EmbeddingStatusProcessing
	s.status.TotalDocuments = total
	s.mu.Unlock()

	logger.Info("Starting transcript ingestion", "companies", len(batches), "documents", total, "force_recreate", opts.ForceRecreate)

	for _, batch := range batches {
		if err := s.ingestCompany(ctx, embedder, batch.symbol, batch.files, opts.ForceRecreate); err != nil {
			return fmt.Errorf("ingestion failed for %s: %w", batch.symbol, err)
		}
	}

	s.mu.Lock()
	s.status.Status = models.EmbeddingStatusCompleted
	s.status.Progress = 100
	s.status.ProcessedDocuments = total
	s.status.CurrentCompany = ""
	s.status.EstimatedTimeRemaining = ""
	s.mu.Unlock()

	logger.Info("Transcript ingestion completed", "documents", total)
	return nil
}

func (s *IngestService) ingestCompany(ctx context.Context, embedder *EmbeddingService, symbol string, files []corpus.TranscriptFile, force bool) (err error) {
	started := time.Now()
	chunksStored := 0
	defer func() { s.recordRun(symbol, started, len(files), chunksStored, err) }()

	s.mu.Lock()
	s.status.CurrentCompany = symbol
	s.mu.Unlock()

	collection := corpus.CollectionName(symbol)
	if force {
		if err := s.store.DeleteCollection(ctx, collection); err != nil {
			logger.Warn("Failed to drop collection before recreate", "collection", collection, "error", err)
		}
	}
	if err := s.store.EnsureCollection(ctx, collection, embedder.Dimensions()); err != nil {
		return err
	}

	for _, file := range files {
		content, err := corpus.ReadTranscript(file.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file.Path, err)
		}
		text := strings.TrimSpace(content)
		if text == "" {
			logger.Warn("Skipping empty transcript", "file", file.Filename)
			s.advance()
			continue
		}

		chunks := s.splitter.Split(text)
		if len(chunks) == 0 {
			s.advance()
			continue
		}

		vectors, err := embedder.EmbedTexts(ctx, chunks)
		if err != nil {
			return err
		}

		docID := file.DocumentID()
		docs := make([]vectorstore.Document, len(chunks))
		for i, chunk := range chunks {
			docs[i] = vectorstore.Document{
				ChunkID:     chunker.ChunkID(docID, i),
				DocumentID:  docID,
				Company:     symbol,
				Filename:    file.Filename,
				Date:        file.Date,
				Quarter:     file.Quarter,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				Content:     chunk,
				Vector:      vectors[i],
			}
		}
		if err := s.store.Upsert(ctx, collection, docs); err != nil {
			return err
		}
		chunksStored += len(chunks)
		s.advance()
	}

	logger.Info("Company ingestion finished", "company", symbol, "files", len(files), "chunks", chunksStored)
	return nil
}

func (s *IngestService) advance() {
	s.mu.Lock()
	s.status.ProcessedDocuments++
	s.mu.Unlock()
}

// Status returns a snapshot with progress and time-remaining estimates
// computed from the run so far.
func (s *IngestService) Status() models.EmbeddingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	if st.Status == models.EmbeddingStatusProcessing && st.TotalDocuments > 0 {
		st.Progress = math.Round(float64(st.ProcessedDocuments)/float64(st.TotalDocuments)*1000) / 10
		if st.ProcessedDocuments > 0 && st.ProcessedDocuments < st.TotalDocuments {
			elapsed := time.Since(s.startedAt)
			perDoc := elapsed / time.Duration(st.ProcessedDocuments)
			remaining := time.Duration(st.TotalDocuments-st.ProcessedDocuments) * perDoc
			st.EstimatedTimeRemaining = formatDuration(remaining)
		}
	}
	return st
}

// ClearCompany drops the vector collection for one company.
func (s *IngestService) ClearCompany(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	if !corpus.IsSupported(symbol) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompany, symbol)
	}
	return s.store.DeleteCollection(ctx, corpus.CollectionName(symbol))
}

// ClearAll drops every company collection, continuing past per-company
// failures. Returns how many collections were dropped.
func (s *IngestService) ClearAll(ctx context.Context) int {
	cleared := 0
	for _, symbol := range corpus.Symbols() {
		if err := s.store.DeleteCollection(ctx, corpus.CollectionName(symbol)); err != nil {
			logger.Error("Failed to clear company collection", "company", symbol, "error", err)
			continue
		}
		cleared++
	}
	return cleared
}

// StaleCompanies lists companies with more transcript files on disk
// than indexed documents in the store. Used by the rescan job to decide
// what to re-ingest.
func (s *IngestService) StaleCompanies(ctx context.Context) ([]string, error) {
	var stale []string
	for _, symbol := range corpus.Symbols() {
		files, err := corpus.CompanyFiles(s.cfg.TranscriptsDir, symbol)
		if err != nil {
			if errors.Is(err, corpus.ErrNoTranscriptDir) {
				continue
			}
			return nil, err
		}

		collection := corpus.CollectionName(symbol)
		exists, err := s.store.CollectionExists(ctx, collection)
		if err != nil {
			logger.Warn("Rescan could not check collection", "company", symbol, "error", err)
			continue
		}
		if !exists {
			if len(files) > 0 {
				stale = append(stale, symbol)
			}
			continue
		}

		docs, err := s.store.ListDocuments(ctx, collection)
		if err != nil {
			logger.Warn("Rescan could not list indexed documents", "company", symbol, "error", err)
			continue
		}
		if len(files) > len(docs) {
			stale = append(stale, symbol)
		}
	}
	return stale, nil
}

func (s *IngestService) recordRun(symbol string, started time.Time, files, chunks int, runErr error) {
	if s.runs == nil {
		return
	}

	doc := bson.M{
		"company":      symbol,
		"started_at":   started,
		"completed_at": time.Now(),
		"status":       "completed",
		"files":        files,
		"chunks":       chunks,
	}
	if runErr != nil {
		doc["status"] = "error"
		doc["error"] = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.runs.InsertOne(ctx, doc); err != nil {
		logger.Warn("Failed to record ingest run", "company", symbol, "error", err)
	}
}

func resolveCompanies(companies []string) ([]string, error) {
	if len(companies) == 0 {
		return corpus.Symbols(), nil
	}

	resolved := make([]string, 0, len(companies))
	for _, symbol := range companies {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if !corpus.IsSupported(symbol) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompany, symbol)
		}
		resolved = append(resolved, symbol)
	}
	return resolved, nil
}

func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}
