// Package fetcher downloads earnings call transcripts from the web and
// files them into the corpus directory layout.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"financial-transcripts-rag/internal/corpus"
	"financial-transcripts-rag/internal/logger"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// Pages shorter than this are navigation shells or consent walls,
	// not transcripts.
	minTranscriptWords = 200
)

var httpTransport = &http.Transport{
	DisableCompression: false,
}

// FetchRequest identifies one transcript to download.
type FetchRequest struct {
	URL      string
	Company  string // ticker symbol
	Date     string // YYYY-MM-DD; empty uses the page date or today
	RenderJS bool   // force headless rendering for this request
}

// Result is a fetched transcript before or after saving.
type Result struct {
	URL       string
	Title     string
	Content   string
	WordCount int
	Date      string // resolved YYYY-MM-DD
	Quarter   string
	SavedPath string
}

// Fetcher retrieves transcript pages politely: rate limited, with
// browser-like headers, and optional headless rendering for JS-heavy
// sources.
type Fetcher struct {
	transcriptsDir string
	renderJS       bool
	timeout        time.Duration
}

func New(transcriptsDir string, renderJS bool) *Fetcher {
	return &Fetcher{
		transcriptsDir: transcriptsDir,
		renderJS:       renderJS,
		timeout:        60 * time.Second,
	}
}

// Fetch downloads and extracts a single transcript page without saving
// it.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (*Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Company))
	if !corpus.IsSupported(symbol) {
		return nil, fmt.Errorf("unsupported company symbol: %s", req.Company)
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	pageURL := parsed.String()

	var html string
	if f.renderJS || req.RenderJS {
		html, err = renderPageHTML(ctx, pageURL, 45*time.Second)
		if err != nil {
			logger.Warn("Headless render failed, falling back to plain fetch", "url", pageURL, "error", err)
			html = ""
		}
	}
	if html == "" {
		html, err = f.fetchHTML(pageURL, parsed.Hostname())
		if err != nil {
			return nil, err
		}
	}

	result, err := extractTranscript(html, pageURL)
	if err != nil {
		return nil, err
	}

	result.Date = resolveDate(req.Date, result.Date)
	result.Quarter = corpus.QuarterFromDate(result.Date)

	logger.Info("Fetched transcript",
		"company", symbol,
		"url", pageURL,
		"words", result.WordCount,
		"date", result.Date)
	return result, nil
}

// FetchAndSave downloads a transcript and writes it into the corpus
// tree as <root>/<lower-symbol>/<YYYY-Mmm-DD>-<SYMBOL>.txt.
func (f *Fetcher) FetchAndSave(ctx context.Context, req FetchRequest) (*Result, error) {
	result, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	path, err := f.Save(strings.ToUpper(strings.TrimSpace(req.Company)), result)
	if err != nil {
		return nil, err
	}
	result.SavedPath = path
	return result, nil
}

// Save writes an extracted transcript into the corpus layout and
// returns the file path.
func (f *Fetcher) Save(symbol string, result *Result) (string, error) {
	if !corpus.IsSupported(symbol) {
		return "", fmt.Errorf("unsupported company symbol: %s", symbol)
	}

	filename, err := transcriptFilename(symbol, result.Date)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(f.transcriptsDir, strings.ToLower(symbol))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create company directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	body := result.Content
	if result.Title != "" {
		body = result.Title + "\n\n" + body
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

// fetchHTML pulls a single page through colly with the polite-crawl
// settings: domain restriction, rate limit, browser headers, and manual
// brotli handling.
func (f *Fetcher) fetchHTML(pageURL, hostname string) (string, error) {
	options := []colly.CollectorOption{
		colly.Async(true),
		colly.MaxDepth(1),
	}
	if hostname != "" {
		host := strings.TrimPrefix(strings.ToLower(hostname), "www.")
		options = append(options, colly.AllowedDomains(host, "www."+host, hostname))
	}

	c := colly.NewCollector(options...)
	c.WithTransport(httpTransport)
	c.SetRequestTimeout(f.timeout)
	c.UserAgent = browserUserAgent

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       2 * time.Second,
		RandomDelay: 1 * time.Second,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		if u, err := url.Parse(r.URL.String()); err == nil {
			r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", u.Scheme, u.Host))
		}
	})

	var (
		mu       sync.Mutex
		html     string
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		body := r.Body

		// Go's transport decompresses gzip transparently; brotli needs
		// manual handling.
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
				body = decompressed
			}
		}

		if len(body) > 0 {
			if utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType); err == nil {
				if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
					body = decoded
				}
			}
		}

		mu.Lock()
		html = string(body)
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.StatusCode == http.StatusForbidden:
			fetchErr = fmt.Errorf("access forbidden (403): the source blocked the fetch for %s", pageURL)
		case r.StatusCode == http.StatusTooManyRequests:
			fetchErr = fmt.Errorf("rate limited (429) fetching %s", pageURL)
		case r.StatusCode >= 500:
			fetchErr = fmt.Errorf("server error (%d) fetching %s", r.StatusCode, pageURL)
		default:
			fetchErr = fmt.Errorf("failed to fetch %s: %w", pageURL, err)
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("failed to start fetch: %w", err)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil {
		return "", fetchErr
	}
	if html == "" {
		return "", fmt.Errorf("no HTML content received from %s", pageURL)
	}
	return html, nil
}

// transcriptFilename builds the corpus filename, e.g.
// "2020-Apr-30-AAPL.txt".
func transcriptFilename(symbol, date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid transcript date %q: %w", date, err)
	}
	return fmt.Sprintf("%s-%s.txt", t.Format("2006-Jan-02"), strings.ToUpper(symbol)), nil
}

func resolveDate(requested, extracted string) string {
	if requested != "" {
		return requested
	}
	if extracted != "" {
		return extracted
	}
	return time.Now().Format("2006-01-02")
}
