package services

import (
	"context"
	"errors"
	"testing"

	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/vectorstore"
)

func seedCompanyChunks(t *testing.T, store *vectorstore.MemoryStore, symbol string, docs []vectorstore.Document) {
	t.Helper()
	ctx := context.Background()
	collection := corpus.CollectionName(symbol)
	if err := store.EnsureCollection(ctx, collection, 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if err := store.Upsert(ctx, collection, docs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func aaplStatsFixture() []vectorstore.Document {
	return []vectorstore.Document{
		{
			ChunkID:    "aapl_2016-Jan-26-AAPL_chunk_0",
			DocumentID: "aapl_2016-Jan-26-AAPL",
			Company:    "AAPL",
			Filename:   "2016-Jan-26-AAPL.txt",
			Date:       "2016-01-26",
			Content:    "Record December quarter results.",
			Vector:     []float32{1, 0, 0},
		},
		{
			ChunkID:    "aapl_2020-Apr-30-AAPL_chunk_0",
			DocumentID: "aapl_2020-Apr-30-AAPL",
			Company:    "AAPL",
			Filename:   "2020-Apr-30-AAPL.txt",
			Date:       "2020-04-30",
			Content:    "iPhone revenue grew.",
			Vector:     []float32{0, 1, 0},
		},
		{
			ChunkID:    "aapl_2020-Apr-30-AAPL_chunk_1",
			DocumentID: "aapl_2020-Apr-30-AAPL",
			Company:    "AAPL",
			Filename:   "2020-Apr-30-AAPL.txt",
			Date:       "2020-04-30",
			ChunkIndex: 1,
			Content:    "Services set a record.",
			Vector:     []float32{0, 0, 1},
		},
	}
}

func TestCompanyStatsCountsTranscriptsAndChunks(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCompanyChunks(t, store, "AAPL", aaplStatsFixture())
	svc := NewCompanyService(store)

	stats := svc.CompanyStats(context.Background(), "AAPL")

	if stats.Name != "Apple Inc." {
		t.Errorf("unexpected name: %q", stats.Name)
	}
	if stats.TranscriptCount != 2 || stats.ChunkCount != 3 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.DateRange == nil || stats.DateRange.Start != "2016-01-26" || stats.DateRange.End != "2020-04-30" {
		t.Errorf("unexpected date range: %+v", stats.DateRange)
	}
	if stats.LatestTranscript != "2020-04-30" {
		t.Errorf("unexpected latest transcript: %q", stats.LatestTranscript)
	}
}

func TestCompanyStatsEmptyCollection(t *testing.T) {
	svc := NewCompanyService(vectorstore.NewMemoryStore())

	stats := svc.CompanyStats(context.Background(), "MSFT")

	if stats.Company != "MSFT" || stats.Name != "Microsoft Corporation" {
		t.Errorf("identity fields missing: %+v", stats)
	}
	if stats.TranscriptCount != 0 || stats.ChunkCount != 0 || stats.DateRange != nil {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}

func TestCompaniesOverviewTotals(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCompanyChunks(t, store, "AAPL", aaplStatsFixture())
	svc := NewCompanyService(store)

	overview := svc.CompaniesOverview(context.Background())

	if overview.TotalCompanies != len(corpus.Symbols()) {
		t.Errorf("expected %d companies, got %d", len(corpus.Symbols()), overview.TotalCompanies)
	}
	if overview.TotalTranscripts != 2 {
		t.Errorf("expected 2 transcripts in total, got %d", overview.TotalTranscripts)
	}
	for _, company := range overview.Companies {
		if company.DateRange == nil {
			t.Errorf("date range should never be nil, company %s", company.Symbol)
		}
		if company.Symbol == "AAPL" && company.TranscriptCount != 2 {
			t.Errorf("unexpected AAPL entry: %+v", company)
		}
	}
}

func TestCollectionHealthStates(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCompanyChunks(t, store, "AAPL", aaplStatsFixture())
	svc := NewCompanyService(store)
	ctx := context.Background()

	healthy := svc.CollectionHealth(ctx, "AAPL")
	if healthy.Status != "healthy" || healthy.DocumentCount != 3 {
		t.Errorf("unexpected healthy state: %+v", healthy)
	}
	if healthy.CollectionName != "transcripts_aapl" {
		t.Errorf("unexpected collection name: %q", healthy.CollectionName)
	}
	if healthy.LastChecked.IsZero() {
		t.Error("last checked timestamp missing")
	}

	empty := svc.CollectionHealth(ctx, "NVDA")
	if empty.Status != "empty" || empty.DocumentCount != 0 {
		t.Errorf("unexpected empty state: %+v", empty)
	}
}

func TestCompanyTranscriptsRejectsUnknownSymbol(t *testing.T) {
	svc := NewCompanyService(vectorstore.NewMemoryStore())

	_, err := svc.CompanyTranscripts(context.Background(), "TSLA")
	if !errors.Is(err, ErrCompanyNotFound) {
		t.Errorf("expected ErrCompanyNotFound, got %v", err)
	}
}

func TestCompanyTranscriptsListsDocuments(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCompanyChunks(t, store, "AAPL", aaplStatsFixture())
	svc := NewCompanyService(store)

	resp, err := svc.CompanyTranscripts(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("CompanyTranscripts failed: %v", err)
	}

	if resp.CollectionName != "transcripts_aapl" {
		t.Errorf("unexpected collection name: %q", resp.CollectionName)
	}
	if len(resp.Transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(resp.Transcripts))
	}
	first := resp.Transcripts[0]
	if first.DocumentID != "aapl_2016-Jan-26-AAPL" || first.ChunkCount != 1 {
		t.Errorf("unexpected first transcript: %+v", first)
	}
	second := resp.Transcripts[1]
	if second.Quarter != "Q2 2020" || second.ChunkCount != 2 {
		t.Errorf("unexpected second transcript: %+v", second)
	}
}
