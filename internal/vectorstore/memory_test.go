package vectorstore

import (
	"context"
	"math"
	"testing"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "transcripts_aapl", 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}

	docs := []Document{
		{
			ChunkID:    "aapl_2020-Apr-30_chunk_0",
			DocumentID: "aapl_2020-Apr-30",
			Company:    "AAPL",
			Filename:   "2020-Apr-30-AAPL.txt",
			Date:       "2020-04-30",
			Quarter:    "Q2 2020",
			ChunkIndex: 0,
			TotalChunks: 2,
			Content:    "iPhone revenue grew strongly this quarter.",
			Vector:     []float32{1, 0, 0},
		},
		{
			ChunkID:    "aapl_2020-Apr-30_chunk_1",
			DocumentID: "aapl_2020-Apr-30",
			Company:    "AAPL",
			Filename:   "2020-Apr-30-AAPL.txt",
			Date:       "2020-04-30",
			Quarter:    "Q2 2020",
			ChunkIndex: 1,
			TotalChunks: 2,
			Content:    "Services reached an all-time high.",
			Vector:     []float32{0.9, 0.1, 0},
		},
		{
			ChunkID:    "aapl_2016-Jan-26_chunk_0",
			DocumentID: "aapl_2016-Jan-26",
			Company:    "AAPL",
			Filename:   "2016-Jan-26-AAPL.txt",
			Date:       "2016-01-26",
			Quarter:    "Q1 2016",
			ChunkIndex: 0,
			TotalChunks: 1,
			Content:    "Mac sales declined year over year.",
			Vector:     []float32{0, 1, 0},
		},
	}
	if err := store.Upsert(ctx, "transcripts_aapl", docs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return store
}

func TestMemoryStoreSearchOrdersBySimilarity(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "transcripts_aapl", []float32{1, 0, 0}, 10, 0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "aapl_2020-Apr-30_chunk_0" {
		t.Errorf("expected exact match first, got %s", results[0].ChunkID)
	}
	if math.Abs(results[0].Similarity-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical vector, got %f", results[0].Similarity)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

func TestMemoryStoreSearchAppliesThreshold(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "transcripts_aapl", []float32{1, 0, 0}, 10, 0.5, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.Similarity < 0.5 {
			t.Errorf("result %s below threshold: %f", r.ChunkID, r.Similarity)
		}
	}
	if len(results) != 2 {
		t.Errorf("expected orthogonal vector filtered out, got %d results", len(results))
	}
}

func TestMemoryStoreSearchLimitsResults(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "transcripts_aapl", []float32{1, 0, 0}, 1, 0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestMemoryStoreSearchDateFilter(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	results, err := store.Search(ctx, "transcripts_aapl", []float32{1, 1, 0}, 10, 0, &DateFilter{Start: "2020-01-01"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.Date != "2020-04-30" {
			t.Errorf("date filter leaked %s", r.Date)
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results from 2020, got %d", len(results))
	}

	results, err = store.Search(ctx, "transcripts_aapl", []float32{1, 1, 0}, 10, 0, &DateFilter{End: "2016-12-31"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Date != "2016-01-26" {
		t.Errorf("expected only the 2016 transcript, got %+v", results)
	}
}

func TestMemoryStoreCountAndDelete(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx, "transcripts_aapl")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 chunks, got %d", count)
	}

	if err := store.DeleteCollection(ctx, "transcripts_aapl"); err != nil {
		t.Fatalf("DeleteCollection failed: %v", err)
	}
	exists, err := store.CollectionExists(ctx, "transcripts_aapl")
	if err != nil {
		t.Fatalf("CollectionExists failed: %v", err)
	}
	if exists {
		t.Error("collection still exists after delete")
	}
	count, _ = store.Count(ctx, "transcripts_aapl")
	if count != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", count)
	}
}

func TestMemoryStoreListDocuments(t *testing.T) {
	store := seedStore(t)

	docs, err := store.ListDocuments(context.Background(), "transcripts_aapl")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].DocumentID != "aapl_2016-Jan-26" {
		t.Errorf("expected oldest document first, got %s", docs[0].DocumentID)
	}
	if docs[1].ChunkCount != 2 {
		t.Errorf("expected 2 chunks for 2020 transcript, got %d", docs[1].ChunkCount)
	}
}

func TestMemoryStoreUpsertRejectsWrongDimension(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "transcripts_msft", 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	err := store.Upsert(ctx, "transcripts_msft", []Document{{ChunkID: "x", Vector: []float32{1, 0}}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
