package services

import (
	"context"
	"fmt"

	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/telemetry"
)

// EmbeddingProvider is the provider surface the service needs, as
// implemented by ai.EmbeddingClient.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Provider() string
	Dimensions() int
}

// EmbeddingService wraps the embedding provider with the disk cache and
// batches uncached texts to stay inside provider request limits.
type EmbeddingService struct {
	client    EmbeddingProvider
	cache     *EmbeddingCache
	metrics   *telemetry.Metrics
	batchSize int
}

func NewEmbeddingService(client EmbeddingProvider, cache *EmbeddingCache, metrics *telemetry.Metrics, batchSize int) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &EmbeddingService{
		client:    client,
		cache:     cache,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// WithBatchSize returns a copy of the service using the given batch
// size, or the receiver itself when n is not positive.
func (s *EmbeddingService) WithBatchSize(n int) *EmbeddingService {
	if n <= 0 {
		return s
	}
	clone := *s
	clone.batchSize = n
	return &clone
}

// ModelName reports the active embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.client.ModelName()
}

// Provider reports the active embedding provider name.
func (s *EmbeddingService) Provider() string {
	return s.client.Provider()
}

// Dimensions reports the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.client.Dimensions()
}

// Cache exposes the underlying disk cache for status reporting.
func (s *EmbeddingService) Cache() *EmbeddingCache {
	return s.cache
}

// EmbedQuery embeds a single query string.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts returns one embedding per input text, in order. Cached
// entries are served from disk; the rest go to the provider in batches.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(text); ok {
				vectors[i] = vec
				s.recordCacheEvent(true)
				continue
			}
			s.recordCacheEvent(false)
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	for start := 0; start < len(missing); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		batchTexts := make([]string, len(batch))
		for i, idx := range batch {
			batchTexts[i] = texts[idx]
		}

		embedded, err := s.client.EmbedBatch(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d failed: %w", start/s.batchSize, err)
		}

		for i, idx := range batch {
			vectors[idx] = embedded[i]
			if s.cache != nil {
				if err := s.cache.Put(texts[idx], embedded[i]); err != nil {
					logger.Warn("Failed to cache embedding", "error", err)
				}
			}
		}
		if s.metrics != nil {
			s.metrics.RecordEmbeddings(len(batch), s.client.Provider())
		}
	}

	return vectors, nil
}

func (s *EmbeddingService) recordCacheEvent(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheEvent("embeddings", hit)
	}
}
