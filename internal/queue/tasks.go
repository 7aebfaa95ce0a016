// Package queue defines the background tasks processed by the worker:
// corpus ingestion and remote transcript fetching.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/fetcher"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/services"
)

const (
	TaskIngestCompany   = "ingest:company"
	TaskIngestCorpus    = "ingest:corpus"
	TaskFetchTranscript = "transcripts:fetch"
)

type IngestCompanyPayload struct {
	Company       string `json:"company"`
	ForceRecreate bool   `json:"force_recreate"`
	BatchSize     int    `json:"batch_size,omitempty"`
}

type IngestCorpusPayload struct {
	Companies     []string `json:"companies,omitempty"`
	ForceRecreate bool     `json:"force_recreate"`
	BatchSize     int      `json:"batch_size,omitempty"`
}

type FetchTranscriptPayload struct {
	URL      string `json:"url"`
	Company  string `json:"company"`
	Date     string `json:"date,omitempty"`
	RenderJS bool   `json:"render_js,omitempty"`
}

// NewIngestCompanyTask queues embedding generation for one company.
func NewIngestCompanyTask(company string, force bool, batchSize int) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestCompanyPayload{
		Company:       company,
		ForceRecreate: force,
		BatchSize:     batchSize,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestCompany,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewIngestCorpusTask queues embedding generation for several companies,
// or the whole corpus when companies is empty.
func NewIngestCorpusTask(companies []string, force bool, batchSize int) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestCorpusPayload{
		Companies:     companies,
		ForceRecreate: force,
		BatchSize:     batchSize,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestCorpus,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewFetchTranscriptTask queues a remote transcript download.
func NewFetchTranscriptTask(url, company, date string, renderJS bool) (*asynq.Task, error) {
	payload, err := json.Marshal(FetchTranscriptPayload{
		URL:      url,
		Company:  company,
		Date:     date,
		RenderJS: renderJS,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskFetchTranscript,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor executes queued tasks against the ingest service and
// the transcript fetcher.
type TaskProcessor struct {
	ingest  *services.IngestService
	fetcher *fetcher.Fetcher
}

func NewTaskProcessor(ingest *services.IngestService, transcriptFetcher *fetcher.Fetcher) *TaskProcessor {
	return &TaskProcessor{
		ingest:  ingest,
		fetcher: transcriptFetcher,
	}
}

// HandleIngestCompany ingests a single company's transcripts. A run
// already in progress is returned as a retryable error so the task is
// attempted again once the current run finishes.
func (p *TaskProcessor) HandleIngestCompany(ctx context.Context, t *asynq.Task) error {
	var payload IngestCompanyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing ingest task", "company", payload.Company, "force", payload.ForceRecreate)
	return p.runIngest(ctx, []string{payload.Company}, payload.ForceRecreate, payload.BatchSize)
}

// HandleIngestCorpus ingests several companies in one run.
func (p *TaskProcessor) HandleIngestCorpus(ctx context.Context, t *asynq.Task) error {
	var payload IngestCorpusPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing corpus ingest task", "companies", payload.Companies, "force", payload.ForceRecreate)
	return p.runIngest(ctx, payload.Companies, payload.ForceRecreate, payload.BatchSize)
}

func (p *TaskProcessor) runIngest(ctx context.Context, companies []string, force bool, batchSize int) error {
	resolved, err := p.ingest.Begin(companies, force)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedCompany) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return p.ingest.Run(ctx, services.IngestOptions{
		Companies:     resolved,
		ForceRecreate: force,
		BatchSize:     batchSize,
	})
}

// HandleFetchTranscript downloads one transcript into the corpus tree.
func (p *TaskProcessor) HandleFetchTranscript(ctx context.Context, t *asynq.Task) error {
	var payload FetchTranscriptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	if !corpus.IsSupported(payload.Company) {
		return fmt.Errorf("unsupported company symbol %s: %w", payload.Company, asynq.SkipRetry)
	}

	result, err := p.fetcher.FetchAndSave(ctx, fetcher.FetchRequest{
		URL:      payload.URL,
		Company:  payload.Company,
		Date:     payload.Date,
		RenderJS: payload.RenderJS,
	})
	if err != nil {
		return fmt.Errorf("fetch failed for %s: %w", payload.URL, err)
	}

	logger.Info("Transcript fetched",
		"company", payload.Company,
		"path", result.SavedPath,
		"words", result.WordCount)
	return nil
}
