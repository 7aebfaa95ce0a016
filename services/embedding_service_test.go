package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"financial-transcripts-rag/internal/ai"
	"financial-transcripts-rag/internal/config"
)

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	cache, err := NewEmbeddingCache(t.TempDir(), "text-embedding-004")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}

	text := "Revenue grew 12% year over year."
	if _, ok := cache.Get(text); ok {
		t.Fatal("expected cache miss before Put")
	}

	want := []float32{0.1, 0.2, 0.3}
	if err := cache.Put(text, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get(text)
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	if len(got) != len(want) {
		t.Fatalf("embedding length changed: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("embedding[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestEmbeddingCacheModelMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	old, err := NewEmbeddingCache(dir, "text-embedding-004")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}
	if err := old.Put("some chunk", []float32{1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	current, err := NewEmbeddingCache(dir, "text-embedding-3-small")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}
	if _, ok := current.Get("some chunk"); ok {
		t.Error("entry written by a different model must not hit")
	}
}

func TestEmbeddingCacheIgnoresCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewEmbeddingCache(dir, "text-embedding-004")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}

	key := cache.Key("broken")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, ok := cache.Get("broken"); ok {
		t.Error("corrupt entry must be treated as a miss")
	}
}

func TestEmbeddingCacheClearAndStats(t *testing.T) {
	cache, err := NewEmbeddingCache(t.TempDir(), "text-embedding-004")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if err := cache.Put(text, []float32{1, 2}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", stats.Entries)
	}
	if stats.SizeBytes == 0 {
		t.Error("expected nonzero cache size")
	}

	removed, err := cache.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 entries removed, got %d", removed)
	}

	stats, err = cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", stats.Entries)
	}
}

func TestEmbedTextsServesFullyCachedBatch(t *testing.T) {
	cache, err := NewEmbeddingCache(t.TempDir(), "text-embedding-004")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}

	texts := []string{"alpha", "beta", "gamma"}
	for i, text := range texts {
		if err := cache.Put(text, []float32{float32(i)}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// Provider client is nil; a fully cached batch must never reach it.
	svc := NewEmbeddingService(nil, cache, nil, 2)
	vectors, err := svc.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts failed: %v", err)
	}
	for i := range texts {
		if len(vectors[i]) != 1 || vectors[i][0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, vectors[i])
		}
	}
}

func TestEmbedTextsLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	client, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		t.Fatalf("embedding client error: %v", err)
	}
	defer client.Close()

	cache, err := NewEmbeddingCache(t.TempDir(), client.ModelName())
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}

	svc := NewEmbeddingService(client, cache, nil, cfg.BatchSize)
	vectors, err := svc.EmbedTexts(context.Background(), []string{"hello world", "earnings call"})
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) == 0 {
		t.Fatalf("unexpected embedding shape: %d vectors", len(vectors))
	}

	// Second pass must be served from cache.
	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 cached entries, got %d", stats.Entries)
	}
}
