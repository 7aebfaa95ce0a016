package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"financial-transcripts-rag/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoQueryLogStorage is returned when export is requested but the
// service was built without a MongoDB collection.
var ErrNoQueryLogStorage = errors.New("query log storage is not configured")

const (
	exportContentTypeJSON  = "application/json"
	exportContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportContentTypeZip   = "application/zip"
)

// ExportRequest selects which query log entries to export and in what
// format.
type ExportRequest struct {
	Format   string    `json:"format" binding:"required,oneof=json excel both"`
	DateFrom time.Time `json:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty"`
	Company  string    `json:"company,omitempty"`
	Status   string    `json:"status,omitempty" binding:"omitempty,oneof=success no_context error"`
	Limit    int       `json:"limit,omitempty"` // 0 = no limit
}

// ExportResult carries the rendered export file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	RecordCount int
}

// QueryLogExport is the structured data written to the export file.
type QueryLogExport struct {
	ExportInfo ExportInfo      `json:"export_info"`
	Queries    []QueryExport   `json:"queries"`
	Summary    QueryLogSummary `json:"summary"`
}

type ExportInfo struct {
	ExportDate   time.Time `json:"export_date"`
	TotalRecords int       `json:"total_records"`
	DateRange    string    `json:"date_range,omitempty"`
	Company      string    `json:"company,omitempty"`
	Format       string    `json:"format"`
}

type QueryExport struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Companies      string    `json:"companies,omitempty"`
	SourceCount    int       `json:"source_count"`
	TokensUsed     int       `json:"tokens_used"`
	ProcessingSecs float64   `json:"processing_seconds"`
	Cached         bool      `json:"cached"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type QueryLogSummary struct {
	TotalQueries      int            `json:"total_queries"`
	TotalTokens       int            `json:"total_tokens"`
	CacheHits         int            `json:"cache_hits"`
	AvgProcessingSecs float64        `json:"avg_processing_seconds"`
	DateRange         string         `json:"date_range,omitempty"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
	TopCompanies      []CompanyCount `json:"top_companies,omitempty"`
}

type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// ExportService renders query log exports as JSON, Excel, or a ZIP of
// both.
type ExportService struct {
	queries *mongo.Collection
}

func NewExportService(queries *mongo.Collection) *ExportService {
	return &ExportService{queries: queries}
}

// Export fetches the matching query log entries and renders them in the
// requested format. A result with a nil Data means nothing matched.
func (es *ExportService) Export(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	if es.queries == nil {
		return nil, ErrNoQueryLogStorage
	}

	opts := options.Find().SetSort(bson.D{primitive.E{Key: "created_at", Value: -1}})
	if req.Limit > 0 {
		opts.SetLimit(int64(req.Limit))
	}

	cursor, err := es.queries.Find(ctx, es.BuildQueryFilter(req), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch query log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.QueryLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode query log: %w", err)
	}

	if len(entries) == 0 {
		return &ExportResult{RecordCount: 0}, nil
	}

	data := buildExportData(entries, req)

	switch req.Format {
	case "json":
		return es.exportJSON(data)
	case "excel":
		return es.exportExcel(data)
	case "both":
		return es.exportZip(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// BuildQueryFilter builds the MongoDB filter for an export request.
func (es *ExportService) BuildQueryFilter(req *ExportRequest) bson.M {
	filter := bson.M{}

	if req.Company != "" {
		filter["companies"] = strings.ToUpper(strings.TrimSpace(req.Company))
	}
	if req.Status != "" {
		filter["status"] = req.Status
	}
	if !req.DateFrom.IsZero() || !req.DateTo.IsZero() {
		dateFilter := bson.M{}
		if !req.DateFrom.IsZero() {
			dateFilter["$gte"] = req.DateFrom
		}
		if !req.DateTo.IsZero() {
			dateFilter["$lte"] = req.DateTo
		}
		filter["created_at"] = dateFilter
	}

	return filter
}

// StreamExport writes a rendered export as a file download.
func (es *ExportService) StreamExport(c *gin.Context, result *ExportResult) {
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Header("Content-Length", strconv.Itoa(len(result.Data)))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func buildExportData(entries []models.QueryLogEntry, req *ExportRequest) *QueryLogExport {
	queries := make([]QueryExport, len(entries))
	for i, entry := range entries {
		queries[i] = QueryExport{
			ID:             entry.ID.Hex(),
			Question:       entry.Question,
			Answer:         entry.Answer,
			Companies:      strings.Join(entry.Companies, ", "),
			SourceCount:    entry.SourceCount,
			TokensUsed:     entry.TokensUsed,
			ProcessingSecs: entry.ProcessingSecs,
			Cached:         entry.Cached,
			Status:         entry.Status,
			CreatedAt:      entry.CreatedAt,
		}
	}

	dateRange := exportDateRange(req.DateFrom, req.DateTo)

	return &QueryLogExport{
		ExportInfo: ExportInfo{
			ExportDate:   time.Now().UTC(),
			TotalRecords: len(entries),
			DateRange:    dateRange,
			Company:      strings.ToUpper(strings.TrimSpace(req.Company)),
			Format:       req.Format,
		},
		Queries: queries,
		Summary: summarizeEntries(entries, dateRange),
	}
}

func summarizeEntries(entries []models.QueryLogEntry, dateRange string) QueryLogSummary {
	summary := QueryLogSummary{
		TotalQueries:    len(entries),
		DateRange:       dateRange,
		StatusBreakdown: make(map[string]int),
	}

	totalSecs := 0.0
	companyCounts := make(map[string]int)
	for _, entry := range entries {
		summary.TotalTokens += entry.TokensUsed
		if entry.Cached {
			summary.CacheHits++
		}
		totalSecs += entry.ProcessingSecs
		if entry.Status != "" {
			summary.StatusBreakdown[entry.Status]++
		}
		for _, company := range entry.Companies {
			if company != "" {
				companyCounts[company]++
			}
		}
	}

	if len(entries) > 0 {
		summary.AvgProcessingSecs = totalSecs / float64(len(entries))
	}
	summary.TopCompanies = topCompanies(companyCounts, 10)
	return summary
}

func topCompanies(counts map[string]int, limit int) []CompanyCount {
	items := make([]CompanyCount, 0, len(counts))
	for company, count := range counts {
		items = append(items, CompanyCount{Company: company, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Company < items[j].Company
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func exportDateRange(from, to time.Time) string {
	switch {
	case !from.IsZero() && !to.IsZero():
		return fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	case !from.IsZero():
		return fmt.Sprintf("From %s", from.Format("2006-01-02"))
	case !to.IsZero():
		return fmt.Sprintf("Until %s", to.Format("2006-01-02"))
	default:
		return ""
	}
}

func (es *ExportService) exportJSON(data *QueryLogExport) (*ExportResult, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return &ExportResult{
		Filename:    "query_log_export.json",
		ContentType: exportContentTypeJSON,
		Data:        jsonData,
		RecordCount: data.ExportInfo.TotalRecords,
	}, nil
}

func (es *ExportService) exportExcel(data *QueryLogExport) (*ExportResult, error) {
	excelData, err := buildWorkbook(data)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Filename:    "query_log_export.xlsx",
		ContentType: exportContentTypeExcel,
		Data:        excelData,
		RecordCount: data.ExportInfo.TotalRecords,
	}, nil
}

func (es *ExportService) exportZip(data *QueryLogExport) (*ExportResult, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonFile, err := zipWriter.Create("query_log_export.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file in ZIP: %w", err)
	}
	if _, err := jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("failed to write JSON data: %w", err)
	}

	excelData, err := buildWorkbook(data)
	if err != nil {
		return nil, err
	}
	excelFile, err := zipWriter.Create("query_log_export.xlsx")
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel file in ZIP: %w", err)
	}
	if _, err := excelFile.Write(excelData); err != nil {
		return nil, fmt.Errorf("failed to write Excel data to ZIP: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close ZIP writer: %w", err)
	}

	return &ExportResult{
		Filename:    "query_log_export.zip",
		ContentType: exportContentTypeZip,
		Data:        buf.Bytes(),
		RecordCount: data.ExportInfo.TotalRecords,
	}, nil
}

// buildWorkbook renders the export as a two-sheet Excel workbook: the
// query log itself plus a summary sheet.
func buildWorkbook(data *QueryLogExport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Query Log"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Question", "Answer", "Companies", "Source Count",
		"Tokens Used", "Processing Seconds", "Cached", "Status", "Created At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, query := range data.Queries {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), query.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), query.Question)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), query.Answer)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), query.Companies)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), query.SourceCount)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), query.TokensUsed)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), query.ProcessingSecs)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), query.Cached)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), query.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), query.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	for i := range headers {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	summarySheetName := "Summary"
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryData := [][]interface{}{
		{"Export Information", ""},
		{"Export Date", data.ExportInfo.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Records", data.ExportInfo.TotalRecords},
		{"Date Range", data.ExportInfo.DateRange},
		{"Format", data.ExportInfo.Format},
		{"", ""},
		{"Summary Statistics", ""},
		{"Total Queries", data.Summary.TotalQueries},
		{"Total Tokens", data.Summary.TotalTokens},
		{"Cache Hits", data.Summary.CacheHits},
		{"Avg Processing Seconds", fmt.Sprintf("%.2f", data.Summary.AvgProcessingSecs)},
	}
	for i, row := range summaryData {
		for j, cell := range row {
			cellRef := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(summarySheetName, cellRef, cell)
		}
	}

	row := len(summaryData) + 2
	if len(data.Summary.StatusBreakdown) > 0 {
		f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), "Status")
		f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), "Count")
		row++

		statuses := make([]string, 0, len(data.Summary.StatusBreakdown))
		for status := range data.Summary.StatusBreakdown {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), status)
			f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), data.Summary.StatusBreakdown[status])
			row++
		}
		row++
	}

	if len(data.Summary.TopCompanies) > 0 {
		f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), "Top Companies")
		f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), "Count")
		row++

		for _, company := range data.Summary.TopCompanies {
			f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), company.Company)
			f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), company.Count)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
