package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"financial-transcripts-rag/internal/corpus"
)

// MemoryStore is an in-process Store used in tests and for local runs
// without a Qdrant instance.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimensions int
	docs       map[string]Document // keyed by ChunkID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = &memoryCollection{
			dimensions: dimensions,
			docs:       make(map[string]Document),
		}
	}
	return nil
}

func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.collections[collection]
	return ok, nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	for _, doc := range docs {
		if col.dimensions > 0 && len(doc.Vector) != col.dimensions {
			return fmt.Errorf("vector size %d does not match collection dimension %d", len(doc.Vector), col.dimensions)
		}
		col.docs[doc.ChunkID] = doc
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int, threshold float64, dates *DateFilter) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	var startNum, endNum int64
	if dates != nil {
		if dates.Start != "" {
			startNum = corpus.DateNum(dates.Start)
		}
		if dates.End != "" {
			endNum = corpus.DateNum(dates.End)
		}
	}

	var results []SearchResult
	for _, doc := range col.docs {
		num := corpus.DateNum(doc.Date)
		if startNum > 0 && num < startNum {
			continue
		}
		if endNum > 0 && (num == 0 || num > endNum) {
			continue
		}

		similarity := cosineSimilarity(vector, doc.Vector)
		if threshold > 0 && similarity < threshold {
			continue
		}
		results = append(results, SearchResult{
			ChunkID:    doc.ChunkID,
			DocumentID: doc.DocumentID,
			Company:    doc.Company,
			Filename:   doc.Filename,
			Date:       doc.Date,
			Quarter:    doc.Quarter,
			ChunkIndex: doc.ChunkIndex,
			Content:    doc.Content,
			Similarity: similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	return uint64(len(col.docs)), nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, collection string) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}

	byID := make(map[string]*DocumentInfo)
	for _, doc := range col.docs {
		info, ok := byID[doc.DocumentID]
		if !ok {
			info = &DocumentInfo{
				DocumentID: doc.DocumentID,
				Filename:   doc.Filename,
				Date:       doc.Date,
			}
			byID[doc.DocumentID] = info
		}
		info.ChunkCount++
	}

	docs := make([]DocumentInfo, 0, len(byID))
	for _, info := range byID {
		docs = append(docs, *info)
	}
	sortDocumentInfos(docs)
	return docs, nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
