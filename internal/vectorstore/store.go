// Package vectorstore persists transcript chunk embeddings and serves
// similarity search over them. Each company gets its own collection;
// chunk payloads carry enough metadata to render sources without a
// second lookup.
package vectorstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Payload field names stored with every chunk.
const (
	FieldChunkID     = "chunk_id"
	FieldDocumentID  = "document_id"
	FieldCompany     = "company"
	FieldFilename    = "filename"
	FieldDate        = "date"
	FieldDateNum     = "date_num"
	FieldQuarter     = "quarter"
	FieldChunkIndex  = "chunk_index"
	FieldTotalChunks = "total_chunks"
	FieldContent     = "content"
)

// Document is one embedded transcript chunk ready for upsert.
type Document struct {
	ChunkID     string // "<document_id>_chunk_<index>"
	DocumentID  string
	Company     string // ticker symbol
	Filename    string
	Date        string // normalized YYYY-MM-DD or "unknown"
	Quarter     string
	ChunkIndex  int
	TotalChunks int
	Content     string
	Vector      []float32
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Company    string
	Filename   string
	Date       string
	Quarter    string
	ChunkIndex int
	Content    string
	Similarity float64
}

// DateFilter restricts search to a date window. Empty bounds are open.
type DateFilter struct {
	Start string // YYYY-MM-DD inclusive
	End   string // YYYY-MM-DD inclusive
}

// DocumentInfo summarizes one ingested transcript inside a collection.
type DocumentInfo struct {
	DocumentID string
	Filename   string
	Date       string
	ChunkCount int
}

// Store is the vector database abstraction. Implementations must be safe
// for concurrent use.
type Store interface {
	// EnsureCollection creates the collection if it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dimensions int) error

	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// DeleteCollection drops the collection and all its points.
	DeleteCollection(ctx context.Context, collection string) error

	// Upsert writes chunk documents with their vectors.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Search returns up to limit chunks with cosine similarity at or
	// above threshold, most similar first.
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64, dates *DateFilter) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context, collection string) (uint64, error)

	// ListDocuments aggregates stored chunks into per-document summaries.
	ListDocuments(ctx context.Context, collection string) ([]DocumentInfo, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases client resources.
	Close() error
}

// PointUUID derives the stable point ID for a chunk. Qdrant point IDs
// must be UUIDs or integers, so the logical chunk ID is hashed into a
// deterministic UUID.
func PointUUID(chunkID string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func sortDocumentInfos(docs []DocumentInfo) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Date != docs[j].Date {
			return docs[i].Date < docs[j].Date
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
}
