package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"financial-transcripts-rag/internal/chunker"
	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/vectorstore"
	"financial-transcripts-rag/models"
)

// stubProvider returns a fixed-dimension embedding derived from text
// length, so ingestion tests run without a provider account.
type stubProvider struct {
	calls int
}

func (p *stubProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0}
	}
	return vectors, nil
}

func (p *stubProvider) ModelName() string { return "stub-embedder" }

func (p *stubProvider) Provider() string { return "stub" }

func (p *stubProvider) Dimensions() int { return 3 }

func writeCorpusFile(t *testing.T, root, company, filename, content string) {
	t.Helper()
	dir := filepath.Join(root, company)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func newTestIngestService(t *testing.T, root string) (*IngestService, *vectorstore.MemoryStore, *stubProvider) {
	t.Helper()
	cfg := &config.Config{TranscriptsDir: root, MaxChunkSize: 512, BatchSize: 8}
	store := vectorstore.NewMemoryStore()
	cache, err := NewEmbeddingCache(t.TempDir(), "stub-embedder")
	if err != nil {
		t.Fatalf("NewEmbeddingCache failed: %v", err)
	}
	provider := &stubProvider{}
	embedder := NewEmbeddingService(provider, cache, nil, cfg.BatchSize)
	return NewIngestService(cfg, store, embedder, nil), store, provider
}

func TestIngestRunStoresChunks(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "aapl", "2020-Apr-30-AAPL.txt",
		"Revenue grew 11% year over year. Services set an all-time record. Wearables momentum continued.")

	svc, store, _ := newTestIngestService(t, root)

	companies, err := svc.Begin([]string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(context.Background(), IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	status := svc.Status()
	if status.Status != models.EmbeddingStatusCompleted {
		t.Errorf("expected completed status, got %s", status.Status)
	}
	if status.Progress != 100 {
		t.Errorf("expected progress 100, got %f", status.Progress)
	}

	count, err := store.Count(context.Background(), corpus.CollectionName("AAPL"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count == 0 {
		t.Fatal("expected stored chunks after ingestion")
	}

	docs, err := store.ListDocuments(context.Background(), corpus.CollectionName("AAPL"))
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].DocumentID != "aapl_2020-Apr-30-AAPL" {
		t.Errorf("unexpected documents: %+v", docs)
	}
}

func TestIngestBeginRejectsConcurrentRun(t *testing.T) {
	svc, _, _ := newTestIngestService(t, t.TempDir())

	if _, err := svc.Begin(nil, false); err != nil {
		t.Fatalf("first Begin failed: %v", err)
	}
	if _, err := svc.Begin(nil, false); err != ErrIngestInProgress {
		t.Errorf("expected ErrIngestInProgress, got %v", err)
	}
}

func TestIngestBeginValidatesCompanies(t *testing.T) {
	svc, _, _ := newTestIngestService(t, t.TempDir())

	if _, err := svc.Begin([]string{"TSLA"}, false); err == nil {
		t.Error("expected error for unsupported symbol")
	}

	companies, err := svc.Begin(nil, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if len(companies) != len(corpus.Symbols()) {
		t.Errorf("empty request must resolve to all companies, got %d", len(companies))
	}
}

func TestIngestRunSkipsMissingCompanyDirs(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "msft", "2019-Oct-23-MSFT.txt", "Azure revenue grew 59%.")

	svc, store, _ := newTestIngestService(t, root)

	companies, err := svc.Begin([]string{"MSFT", "AAPL"}, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(context.Background(), IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	count, _ := store.Count(context.Background(), corpus.CollectionName("MSFT"))
	if count == 0 {
		t.Error("expected MSFT chunks despite AAPL directory missing")
	}
	if svc.Status().Status != models.EmbeddingStatusCompleted {
		t.Errorf("expected completed status, got %s", svc.Status().Status)
	}
}

func TestIngestForceRecreateDropsExistingCollection(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "nvda", "2018-Nov-15-NVDA.txt", "Gaming revenue declined sequentially.")

	svc, store, _ := newTestIngestService(t, root)
	ctx := context.Background()

	collection := corpus.CollectionName("NVDA")
	if err := store.EnsureCollection(ctx, collection, 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	stale := vectorstore.Document{
		ChunkID:    "nvda_old_chunk_0",
		DocumentID: "nvda_old",
		Company:    "NVDA",
		Date:       "2016-01-01",
		Content:    "stale chunk",
		Vector:     []float32{0, 0, 1},
	}
	if err := store.Upsert(ctx, collection, []vectorstore.Document{stale}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	companies, err := svc.Begin([]string{"NVDA"}, true)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(ctx, IngestOptions{Companies: companies, ForceRecreate: true}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	docs, err := store.ListDocuments(ctx, collection)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	for _, doc := range docs {
		if doc.DocumentID == "nvda_old" {
			t.Error("stale document survived force recreate")
		}
	}
}

func TestIngestRunUsesEmbeddingCacheOnSecondPass(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "amd", "2017-Jul-25-AMD.txt", "Ryzen desktop processors ramped strongly.")

	svc, _, provider := newTestIngestService(t, root)
	ctx := context.Background()

	companies, err := svc.Begin([]string{"AMD"}, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(ctx, IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	firstCalls := provider.calls
	if firstCalls == 0 {
		t.Fatal("expected provider calls on first pass")
	}

	companies, err = svc.Begin([]string{"AMD"}, false)
	if err != nil {
		t.Fatalf("second Begin failed: %v", err)
	}
	if err := svc.Run(ctx, IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if provider.calls != firstCalls {
		t.Errorf("second pass hit the provider: %d calls vs %d", provider.calls, firstCalls)
	}
}

func TestClearCompanyValidatesSymbol(t *testing.T) {
	svc, store, _ := newTestIngestService(t, t.TempDir())
	ctx := context.Background()

	if err := svc.ClearCompany(ctx, "TSLA"); err == nil {
		t.Error("expected error for unsupported symbol")
	}

	collection := corpus.CollectionName("INTC")
	if err := store.EnsureCollection(ctx, collection, 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if err := svc.ClearCompany(ctx, "intc"); err != nil {
		t.Fatalf("ClearCompany failed: %v", err)
	}
	exists, _ := store.CollectionExists(ctx, collection)
	if exists {
		t.Error("collection still exists after ClearCompany")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
		{0, "0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestChunkingMatchesStoredChunkIDs(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("The data center business delivered record revenue this quarter. ", 20)
	writeCorpusFile(t, root, "mu", "2019-Mar-20-MU.txt", content)

	svc, store, _ := newTestIngestService(t, root)
	ctx := context.Background()

	companies, err := svc.Begin([]string{"MU"}, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(ctx, IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	split := chunker.New(512)
	wantChunks := len(split.Split(content))
	count, _ := store.Count(ctx, corpus.CollectionName("MU"))
	if int(count) != wantChunks {
		t.Errorf("stored %d chunks, chunker produced %d", count, wantChunks)
	}

	results, err := store.Search(ctx, corpus.CollectionName("MU"), []float32{1, 1, 0}, 1, 0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	wantID := fmt.Sprintf("mu_2019-Mar-20-MU_chunk_%d", results[0].ChunkIndex)
	if results[0].ChunkID != wantID {
		t.Errorf("chunk ID %q does not follow document naming, want %q", results[0].ChunkID, wantID)
	}
}

func TestStaleCompaniesTracksDiskAgainstStore(t *testing.T) {
	root := t.TempDir()
	writeCorpusFile(t, root, "msft", "2019-Jul-18-MSFT.txt",
		"Azure revenue grew strongly. Commercial cloud gross margin expanded.")

	svc, _, _ := newTestIngestService(t, root)
	ctx := context.Background()

	stale, err := svc.StaleCompanies(ctx)
	if err != nil {
		t.Fatalf("StaleCompanies failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != "MSFT" {
		t.Fatalf("expected MSFT stale before ingest, got %v", stale)
	}

	companies, err := svc.Begin([]string{"MSFT"}, false)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := svc.Run(ctx, IngestOptions{Companies: companies}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stale, err = svc.StaleCompanies(ctx)
	if err != nil {
		t.Fatalf("StaleCompanies after ingest failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expected nothing stale after ingest, got %v", stale)
	}

	writeCorpusFile(t, root, "msft", "2019-Oct-23-MSFT.txt",
		"Gaming revenue declined while cloud kept growing.")

	stale, err = svc.StaleCompanies(ctx)
	if err != nil {
		t.Fatalf("StaleCompanies after new file failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != "MSFT" {
		t.Errorf("expected MSFT stale after new file, got %v", stale)
	}
}
