// Command ragctl operates the financial transcripts RAG service from the
// terminal: backend health probes, local corpus validation, queueing
// ingest and fetch jobs, and downloading query log exports.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/queue"
	"financial-transcripts-rag/models"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func main() {
	app := &cli.App{
		Name:  "ragctl",
		Usage: "Operate the financial transcripts RAG service",
		Commands: []*cli.Command{
			healthCommand(),
			validateCommand(),
			ingestCommand(),
			fetchCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Probe the backend API and report component status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Value: "http://localhost:8000", Usage: "backend API base URL"},
			&cli.BoolFlag{Name: "summary-only", Usage: "print a single status line"},
		},
		Action: runHealth,
	}
}

// checkResult is the outcome of one health probe. Status is one of
// healthy, working, warning, or error; working and healthy both count
// as non-issues.
type checkResult struct {
	name   string
	status string
	detail []string
	err    string
}

func runHealth(c *cli.Context) error {
	backendURL := strings.TrimRight(c.String("backend-url"), "/")
	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Printf("Running health check against %s\n", cyan(backendURL))
	fmt.Println(strings.Repeat("=", 60))

	api := checkAPIHealth(client, backendURL)
	printCheckLine(api)
	checks := []checkResult{api}

	if api.status == "error" {
		fmt.Println(red("Backend API is not accessible, stopping health check"))
		return cli.Exit("", 1)
	}

	for _, check := range []checkResult{
		checkCompanies(client, backendURL),
		checkEmbeddings(client, backendURL),
		checkSystemInfo(client, backendURL),
		checkQuery(client, backendURL),
	} {
		printCheckLine(check)
		checks = append(checks, check)
	}

	issues := collectIssues(checks)

	if c.Bool("summary-only") {
		if len(issues) == 0 {
			fmt.Println(green("System status: HEALTHY"))
			return nil
		}
		fmt.Println(yellow("System status: ISSUES DETECTED"))
		return cli.Exit("", 1)
	}

	printHealthReport(backendURL, checks, issues)
	if len(issues) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func checkAPIHealth(client *http.Client, base string) checkResult {
	check := checkResult{name: "backend API"}

	start := time.Now()
	resp, err := client.Get(base + "/health")
	elapsed := time.Since(start)
	if err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.status = "error"
		check.err = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return check
	}

	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}

	check.status = "healthy"
	if health.Status != "healthy" {
		check.status = "warning"
	}
	check.detail = []string{
		fmt.Sprintf("Response time: %.3fs", elapsed.Seconds()),
		fmt.Sprintf("Database: %s", health.DatabaseStatus),
		fmt.Sprintf("Embeddings: %s", health.EmbeddingsStatus),
		fmt.Sprintf("Version: %s", health.Version),
	}
	return check
}

func checkCompanies(client *http.Client, base string) checkResult {
	check := checkResult{name: "companies data"}

	var overview models.CompaniesResponse
	if err := getJSON(client, base+"/companies", &overview); err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}

	withData := 0
	for _, company := range overview.Companies {
		if company.TranscriptCount > 0 {
			withData++
		}
	}

	check.status = "healthy"
	if withData == 0 {
		check.status = "warning"
	}
	check.detail = []string{
		fmt.Sprintf("Total companies: %d", overview.TotalCompanies),
		fmt.Sprintf("Companies with data: %d", withData),
		fmt.Sprintf("Total transcripts: %d", overview.TotalTranscripts),
	}
	return check
}

func checkEmbeddings(client *http.Client, base string) checkResult {
	check := checkResult{name: "embedding status"}

	var status models.EmbeddingStatus
	if err := getJSON(client, base+"/api/v1/embeddings/status", &status); err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}

	switch status.Status {
	case models.EmbeddingStatusCompleted, models.EmbeddingStatusIdle:
		check.status = "healthy"
	case models.EmbeddingStatusProcessing:
		check.status = "working"
	default:
		check.status = "warning"
	}

	check.detail = []string{fmt.Sprintf("Process: %s", status.Status)}
	if status.Status == models.EmbeddingStatusProcessing {
		check.detail = append(check.detail, fmt.Sprintf("Progress: %.1f%%", status.Progress))
		if status.CurrentCompany != "" {
			check.detail = append(check.detail, fmt.Sprintf("Current company: %s", status.CurrentCompany))
		}
	}
	if status.Error != "" {
		check.err = status.Error
	}
	return check
}

func checkSystemInfo(client *http.Client, base string) checkResult {
	check := checkResult{name: "system info"}

	var info map[string]interface{}
	if err := getJSON(client, base+"/system/info", &info); err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}
	check.status = "healthy"
	return check
}

func checkQuery(client *http.Client, base string) checkResult {
	check := checkResult{name: "query test"}

	threshold := 0.5
	body, err := json.Marshal(models.QueryRequest{
		Question:            "What is revenue?",
		MaxResults:          1,
		SimilarityThreshold: &threshold,
	})
	if err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}

	start := time.Now()
	resp, err := client.Post(base+"/api/v1/query", "application/json", bytes.NewReader(body))
	elapsed := time.Since(start)
	if err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.status = "error"
		check.err = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return check
	}

	var result models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		check.status = "error"
		check.err = err.Error()
		return check
	}

	check.status = "healthy"
	check.detail = []string{
		fmt.Sprintf("Query time: %.3fs", elapsed.Seconds()),
		fmt.Sprintf("Answer length: %d", len(result.Answer)),
		fmt.Sprintf("Sources found: %d", len(result.Sources)),
	}
	return check
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printCheckLine(check checkResult) {
	fmt.Printf("  %-18s %s\n", check.name, coloredStatus(check.status))
}

func coloredStatus(status string) string {
	switch status {
	case "healthy":
		return green(status)
	case "working", "warning":
		return yellow(status)
	default:
		return red(status)
	}
}

func collectIssues(checks []checkResult) []string {
	var issues []string
	for _, check := range checks {
		if check.status == "healthy" || check.status == "working" {
			continue
		}
		msg := check.err
		if msg == "" {
			msg = check.status
		}
		issues = append(issues, fmt.Sprintf("%s: %s", check.name, msg))
	}
	return issues
}

func printHealthReport(backendURL string, checks []checkResult, issues []string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  HEALTH CHECK REPORT")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Timestamp: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Printf("Backend URL: %s\n\n", backendURL)

	if len(issues) == 0 {
		fmt.Printf("Overall status: %s\n\n", green("HEALTHY"))
	} else {
		fmt.Printf("Overall status: %s\n\n", yellow("ISSUES DETECTED"))
	}

	for _, check := range checks {
		fmt.Printf("%s [%s]\n", strings.ToUpper(check.name), coloredStatus(check.status))
		for _, line := range check.detail {
			fmt.Printf("  %s\n", line)
		}
		if check.err != "" {
			fmt.Printf("  Error: %s\n", red(check.err))
		}
		fmt.Println()
	}

	if len(issues) > 0 {
		fmt.Println(yellow("Issues found:"))
		for _, issue := range issues {
			fmt.Printf("  - %s\n", issue)
		}
	} else {
		fmt.Println(green("No issues found"))
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Scan the local transcript corpus and report integrity issues",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transcripts-path", Value: "./data/transcripts", Usage: "path to the transcripts directory"},
			&cli.BoolFlag{Name: "summary-only", Usage: "print summary statistics only"},
			&cli.BoolFlag{Name: "validate-only", Usage: "print integrity issues only, exit 1 when any are found"},
		},
		Action: runValidate,
	}
}

func runValidate(c *cli.Context) error {
	root := c.String("transcripts-path")
	fmt.Printf("Scanning transcripts directory: %s\n\n", cyan(root))

	scan, err := corpus.Scan(root)
	if err != nil {
		return cli.Exit(red(err.Error()), 1)
	}

	if c.Bool("validate-only") {
		issues := scan.Validate()
		if len(issues) == 0 {
			fmt.Println(green("All validation checks passed"))
			return nil
		}
		fmt.Println(yellow("Validation issues found:"))
		for _, issue := range issues {
			fmt.Printf("  - %s\n", issue)
		}
		return cli.Exit("", 1)
	}

	if c.Bool("summary-only") {
		earliest, latest := corpusDateRange(scan)
		fmt.Printf("Files: %d\n", scan.TotalFiles())
		fmt.Printf("Size: %.2f MB\n", scan.TotalSizeMB())
		fmt.Printf("Companies: %d/%d\n", len(scan.Files), len(corpus.SupportedCompanies))
		if earliest != "" {
			fmt.Printf("Range: %s to %s\n", earliest, latest)
		}
		return nil
	}

	printCorpusReport(scan)
	return nil
}

func printCorpusReport(scan *corpus.ScanResult) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  TRANSCRIPT CORPUS REPORT")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	earliest, latest := corpusDateRange(scan)
	fmt.Printf("Total companies: %d/%d\n", len(scan.Files), len(corpus.SupportedCompanies))
	fmt.Printf("Total transcript files: %d\n", scan.TotalFiles())
	fmt.Printf("Total size: %.2f MB\n", scan.TotalSizeMB())
	fmt.Printf("Average files per company: %.1f\n", scan.AverageFilesPerCompany())
	if earliest != "" {
		fmt.Printf("Date range: %s to %s\n", earliest, latest)
	}
	fmt.Println()

	symbols := make([]string, 0, len(scan.Files))
	for symbol := range scan.Files {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		files := scan.Files[symbol]
		var size int64
		unknown := 0
		first, last := "", ""
		for _, f := range files {
			size += f.Size
			if f.Date == corpus.DateUnknown {
				unknown++
				continue
			}
			if first == "" || f.Date < first {
				first = f.Date
			}
			if f.Date > last {
				last = f.Date
			}
		}

		fmt.Printf("%s (%s)\n", cyan(symbol), corpus.CompanyName(symbol))
		fmt.Printf("  Files: %d, size: %.2f MB\n", len(files), float64(size)/(1024*1024))
		if first != "" {
			fmt.Printf("  Date range: %s to %s\n", first, last)
		}
		if unknown > 0 {
			fmt.Printf("  %s\n", yellow(fmt.Sprintf("%d files with unrecognized date format", unknown)))
		}
	}
	fmt.Println()

	issues := scan.Validate()
	if len(issues) == 0 {
		fmt.Println(green("Data validation passed"))
		return
	}
	fmt.Println(yellow("Data issues:"))
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
}

func corpusDateRange(scan *corpus.ScanResult) (string, string) {
	earliest, latest := "", ""
	for _, files := range scan.Files {
		for _, f := range files {
			if f.Date == corpus.DateUnknown {
				continue
			}
			if earliest == "" || f.Date < earliest {
				earliest = f.Date
			}
			if f.Date > latest {
				latest = f.Date
			}
		}
	}
	return earliest, latest
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Queue embedding generation for companies (all when none given)",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "company", Usage: "ticker symbol, repeatable"},
			&cli.BoolFlag{Name: "force", Usage: "recreate collections before ingesting"},
			&cli.IntFlag{Name: "batch-size", Usage: "embedding batch size (0 uses the configured default)"},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	companies := make([]string, 0, len(c.StringSlice("company")))
	for _, symbol := range c.StringSlice("company") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if !corpus.IsSupported(symbol) {
			return cli.Exit(red(fmt.Sprintf("Unsupported company symbol: %s", symbol)), 1)
		}
		companies = append(companies, symbol)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return cli.Exit(red(err.Error()), 1)
	}

	client := asynq.NewClient(asynqRedisOpt(cfg))
	defer client.Close()

	var task *asynq.Task
	if len(companies) == 1 {
		task, err = queue.NewIngestCompanyTask(companies[0], c.Bool("force"), c.Int("batch-size"))
	} else {
		task, err = queue.NewIngestCorpusTask(companies, c.Bool("force"), c.Int("batch-size"))
	}
	if err != nil {
		return cli.Exit(red(err.Error()), 1)
	}

	info, err := client.Enqueue(task)
	if err != nil {
		return cli.Exit(red(fmt.Sprintf("Failed to enqueue ingest task: %v", err)), 1)
	}

	target := "all companies"
	if len(companies) > 0 {
		target = strings.Join(companies, ", ")
	}
	fmt.Printf("%s ingest of %s (task %s on queue %s)\n", green("Queued"), target, info.ID, info.Queue)
	return nil
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Queue a transcript download into the corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Required: true, Usage: "transcript page URL"},
			&cli.StringFlag{Name: "company", Required: true, Usage: "ticker symbol"},
			&cli.StringFlag{Name: "date", Usage: "call date as YYYY-MM-DD"},
			&cli.BoolFlag{Name: "render-js", Usage: "render the page in a headless browser"},
		},
		Action: runFetch,
	}
}

func runFetch(c *cli.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.String("company")))
	if !corpus.IsSupported(symbol) {
		return cli.Exit(red(fmt.Sprintf("Unsupported company symbol: %s", c.String("company"))), 1)
	}
	if date := c.String("date"); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return cli.Exit(red(fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", date)), 1)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return cli.Exit(red(err.Error()), 1)
	}

	client := asynq.NewClient(asynqRedisOpt(cfg))
	defer client.Close()

	task, err := queue.NewFetchTranscriptTask(c.String("url"), symbol, c.String("date"), c.Bool("render-js"))
	if err != nil {
		return cli.Exit(red(err.Error()), 1)
	}

	info, err := client.Enqueue(task)
	if err != nil {
		return cli.Exit(red(fmt.Sprintf("Failed to enqueue fetch task: %v", err)), 1)
	}

	fmt.Printf("%s fetch of %s for %s (task %s on queue %s)\n", green("Queued"), c.String("url"), symbol, info.ID, info.Queue)
	return nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Download a query log export from the backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Value: "http://localhost:8000", Usage: "backend API base URL"},
			&cli.StringFlag{Name: "format", Value: "json", Usage: "export format: json, excel, or both"},
			&cli.StringFlag{Name: "out", Usage: "output file (defaults to the server-provided name)"},
		},
		Action: runExport,
	}
}

func runExport(c *cli.Context) error {
	backendURL := strings.TrimRight(c.String("backend-url"), "/")
	exportURL := fmt.Sprintf("%s/api/v1/queries/export?format=%s", backendURL, c.String("format"))

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(exportURL)
	if err != nil {
		return cli.Exit(red(fmt.Sprintf("Export request failed: %v", err)), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return cli.Exit(red(fmt.Sprintf("Export failed (HTTP %d): %s", resp.StatusCode, apiErr.Message)), 1)
		}
		return cli.Exit(red(fmt.Sprintf("Export failed: HTTP %d", resp.StatusCode)), 1)
	}

	filename := exportFilename(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		// No attachment header means nothing matched the filters.
		var result struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Message != "" {
			fmt.Println(yellow(result.Message))
			return nil
		}
		return cli.Exit(red("Unexpected export response"), 1)
	}

	out := c.String("out")
	if out == "" {
		out = filename
	}

	file, err := os.Create(out)
	if err != nil {
		return cli.Exit(red(fmt.Sprintf("Failed to create %s: %v", out, err)), 1)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return cli.Exit(red(fmt.Sprintf("Failed to write %s: %v", out, err)), 1)
	}

	fmt.Printf("%s %s (%d bytes)\n", green("Saved"), out, written)
	return nil
}

func exportFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		return params["filename"]
	}
	return ""
}

func asynqRedisOpt(cfg *config.Config) asynq.RedisConnOpt {
	if opt, err := asynq.ParseRedisURI(cfg.RedisURL); err == nil {
		return opt
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
