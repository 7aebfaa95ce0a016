package fetcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// extractTranscript parses a fetched page into a transcript result.
// Pages without enough prose are rejected.
func extractTranscript(html, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := extractMainContent(doc.Selection)
	if len(content) < 50 {
		content = cleanText(doc.Find("body").Text())
	}

	wordCount := len(strings.Fields(content))
	if wordCount < minTranscriptWords {
		return nil, fmt.Errorf("extracted only %d words from %s, not a transcript", wordCount, pageURL)
	}

	return &Result{
		URL:       pageURL,
		Title:     title,
		Content:   content,
		WordCount: wordCount,
		Date:      extractPublishedDate(doc),
	}, nil
}

// extractMainContent pulls the readable text out of a page, preferring
// semantic containers over the raw body.
func extractMainContent(selection *goquery.Selection) string {
	doc := selection.Clone()

	doc.Find("script, style, nav, footer, header, aside, form, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .share-tools, .newsletter").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".transcript",
		".article-body",
		".main-content",
		".content",
		"#content",
		"body",
	}

	var content strings.Builder
	contentFound := false

	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
				contentFound = true
			}
		})
		if contentFound {
			break
		}
	}

	if !contentFound {
		content.WriteString(doc.Find("body").Text())
	}

	return cleanText(content.String())
}

// cleanText collapses runs of blank lines and trims each line.
func cleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// extractPublishedDate looks for the publication date in structured
// data first, then common meta tags. Returns YYYY-MM-DD or "".
func extractPublishedDate(doc *goquery.Document) string {
	var date string

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if published, ok := data["datePublished"].(string); ok {
			if parsed := parsePageDate(published); parsed != "" {
				date = parsed
				return false
			}
		}
		return true
	})
	if date != "" {
		return date
	}

	if content, ok := doc.Find("meta[property='article:published_time']").Attr("content"); ok {
		if parsed := parsePageDate(content); parsed != "" {
			return parsed
		}
	}
	if content, ok := doc.Find("meta[name='date']").Attr("content"); ok {
		if parsed := parsePageDate(content); parsed != "" {
			return parsed
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if parsed := parsePageDate(datetime); parsed != "" {
			return parsed
		}
	}

	return ""
}

var pageDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parsePageDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, format := range pageDateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
