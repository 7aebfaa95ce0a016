package services

import (
	"context"
	"fmt"
	"sort"

	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/internal/vectorstore"
)

// RetrievalOptions select which collections to search and how results
// are filtered.
type RetrievalOptions struct {
	Companies  []string
	MaxResults int
	Threshold  float64
	Dates      *vectorstore.DateFilter
}

// RetrievalResult carries the merged chunks plus how many chunks were
// indexed across the searched companies.
type RetrievalResult struct {
	Chunks        []vectorstore.SearchResult
	TotalSearched uint64
}

// Retriever embeds a query once and fans out over the per-company
// collections. A failing company degrades to partial results instead of
// failing the whole search.
type Retriever struct {
	store    vectorstore.Store
	embedder *EmbeddingService
}

func NewRetriever(store vectorstore.Store, embedder *EmbeddingService) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrievalOptions) (*RetrievalResult, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}

	companies, err := resolveCompanies(opts.Companies)
	if err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Over-fetch per collection so the merged cut keeps the best chunks
	// regardless of which company they came from.
	perCollection := opts.MaxResults * 2
	if perCollection > 50 {
		perCollection = 50
	}

	result := &RetrievalResult{}
	for _, symbol := range companies {
		collection := corpus.CollectionName(symbol)

		count, err := r.store.Count(ctx, collection)
		if err != nil {
			logger.Warn("Skipping collection, count failed", "collection", collection, "error", err)
			continue
		}
		if count == 0 {
			logger.Debug("Skipping empty collection", "collection", collection)
			continue
		}
		result.TotalSearched += count

		chunks, err := r.store.Search(ctx, collection, vector, perCollection, opts.Threshold, opts.Dates)
		if err != nil {
			logger.Warn("Search failed for collection", "collection", collection, "error", err)
			continue
		}
		result.Chunks = append(result.Chunks, chunks...)
	}

	sort.Slice(result.Chunks, func(i, j int) bool {
		return result.Chunks[i].Similarity > result.Chunks[j].Similarity
	})
	if len(result.Chunks) > opts.MaxResults {
		result.Chunks = result.Chunks[:opts.MaxResults]
	}
	return result, nil
}
