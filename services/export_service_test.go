package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"financial-transcripts-rag/models"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func exportFixtureEntries() []models.QueryLogEntry {
	base := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.QueryLogEntry{
		{
			ID:             primitive.NewObjectID(),
			Question:       "How did Apple's services business perform?",
			Answer:         "Services revenue set a record.",
			Companies:      []string{"AAPL"},
			SourceCount:    3,
			TokensUsed:     150,
			ProcessingSecs: 1.2,
			Status:         models.QueryStatusSuccess,
			CreatedAt:      base,
		},
		{
			ID:             primitive.NewObjectID(),
			Question:       "Compare data center growth.",
			Answer:         "Both NVDA and AMD grew.",
			Companies:      []string{"NVDA", "AMD"},
			SourceCount:    5,
			TokensUsed:     300,
			ProcessingSecs: 2.4,
			Cached:         true,
			Status:         models.QueryStatusSuccess,
			CreatedAt:      base.Add(time.Hour),
		},
		{
			ID:             primitive.NewObjectID(),
			Question:       "What about quantum computing?",
			Answer:         "No relevant excerpts.",
			Companies:      []string{"AAPL"},
			ProcessingSecs: 0.6,
			Status:         models.QueryStatusNoContext,
			CreatedAt:      base.Add(2 * time.Hour),
		},
	}
}

func TestBuildExportDataSummarizes(t *testing.T) {
	entries := exportFixtureEntries()
	data := buildExportData(entries, &ExportRequest{Format: "json"})

	if data.ExportInfo.TotalRecords != 3 {
		t.Errorf("expected 3 records, got %d", data.ExportInfo.TotalRecords)
	}
	if data.Queries[1].Companies != "NVDA, AMD" {
		t.Errorf("companies not joined: %q", data.Queries[1].Companies)
	}

	summary := data.Summary
	if summary.TotalQueries != 3 || summary.TotalTokens != 450 || summary.CacheHits != 1 {
		t.Errorf("unexpected summary totals: %+v", summary)
	}
	if summary.AvgProcessingSecs < 1.39 || summary.AvgProcessingSecs > 1.41 {
		t.Errorf("unexpected average: %f", summary.AvgProcessingSecs)
	}
	if summary.StatusBreakdown[models.QueryStatusSuccess] != 2 || summary.StatusBreakdown[models.QueryStatusNoContext] != 1 {
		t.Errorf("unexpected status breakdown: %v", summary.StatusBreakdown)
	}
	if len(summary.TopCompanies) != 3 || summary.TopCompanies[0].Company != "AAPL" || summary.TopCompanies[0].Count != 2 {
		t.Errorf("unexpected top companies: %v", summary.TopCompanies)
	}
}

func TestBuildWorkbookProducesTwoSheets(t *testing.T) {
	data := buildExportData(exportFixtureEntries(), &ExportRequest{Format: "excel"})

	workbook, err := buildWorkbook(data)
	if err != nil {
		t.Fatalf("buildWorkbook failed: %v", err)
	}
	if len(workbook) == 0 {
		t.Fatal("empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	found := map[string]bool{}
	for _, sheet := range sheets {
		found[sheet] = true
	}
	if !found["Query Log"] || !found["Summary"] {
		t.Errorf("missing sheets: %v", sheets)
	}

	header, err := f.GetCellValue("Query Log", "A1")
	if err != nil || header != "ID" {
		t.Errorf("unexpected header cell: %q err=%v", header, err)
	}
	question, err := f.GetCellValue("Query Log", "B2")
	if err != nil || question != "How did Apple's services business perform?" {
		t.Errorf("unexpected question cell: %q err=%v", question, err)
	}
}

func TestExportZipContainsBothFiles(t *testing.T) {
	es := NewExportService(nil)
	data := buildExportData(exportFixtureEntries(), &ExportRequest{Format: "both"})

	result, err := es.exportZip(data)
	if err != nil {
		t.Fatalf("exportZip failed: %v", err)
	}
	if result.Filename != "query_log_export.zip" || result.ContentType != exportContentTypeZip {
		t.Errorf("unexpected result metadata: %+v", result)
	}

	reader, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	if err != nil {
		t.Fatalf("failed to open ZIP: %v", err)
	}
	names := map[string]bool{}
	for _, file := range reader.File {
		names[file.Name] = true
	}
	if !names["query_log_export.json"] || !names["query_log_export.xlsx"] {
		t.Errorf("unexpected ZIP contents: %v", names)
	}
}

func TestBuildQueryFilterNormalizesCompany(t *testing.T) {
	es := NewExportService(nil)
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := es.BuildQueryFilter(&ExportRequest{Company: " aapl ", Status: "success", DateFrom: from})

	if filter["companies"] != "AAPL" {
		t.Errorf("company not normalized: %v", filter["companies"])
	}
	if filter["status"] != "success" {
		t.Errorf("status filter missing: %v", filter)
	}
	if _, ok := filter["created_at"]; !ok {
		t.Errorf("date filter missing: %v", filter)
	}
}

func TestTopCompaniesSortsAndLimits(t *testing.T) {
	counts := map[string]int{"AAPL": 3, "MSFT": 3, "NVDA": 7, "AMD": 1}

	top := topCompanies(counts, 3)

	if len(top) != 3 {
		t.Fatalf("expected 3 items, got %d", len(top))
	}
	if top[0].Company != "NVDA" || top[1].Company != "AAPL" || top[2].Company != "MSFT" {
		t.Errorf("unexpected order: %v", top)
	}
}

func TestExportDateRangeFormats(t *testing.T) {
	from := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)

	if got := exportDateRange(from, to); got != "2019-01-01 to 2020-12-31" {
		t.Errorf("unexpected range: %q", got)
	}
	if got := exportDateRange(from, time.Time{}); got != "From 2019-01-01" {
		t.Errorf("unexpected open-ended range: %q", got)
	}
	if got := exportDateRange(time.Time{}, to); got != "Until 2020-12-31" {
		t.Errorf("unexpected until range: %q", got)
	}
	if got := exportDateRange(time.Time{}, time.Time{}); got != "" {
		t.Errorf("expected empty range, got %q", got)
	}
}

func TestExportRequiresQueryLogStorage(t *testing.T) {
	es := NewExportService(nil)

	_, err := es.Export(context.Background(), &ExportRequest{Format: "json"})
	if !errors.Is(err, ErrNoQueryLogStorage) {
		t.Errorf("expected ErrNoQueryLogStorage, got %v", err)
	}
}
