package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"financial-transcripts-rag/internal/corpus"

	"github.com/PuerkitoBio/goquery"
)

func transcriptBody() string {
	return strings.TrimSpace(strings.Repeat("Operator: Thank you. Our next question covers revenue growth, gross margin, and full year guidance for the segment. ", 20))
}

func transcriptPage(body string) string {
	return fmt.Sprintf(`<html>
<head>
<title>Apple (AAPL) Q2 2020 Earnings Call Transcript</title>
<script type="application/ld+json">{"@type":"Article","datePublished":"2020-04-30T17:00:00Z"}</script>
</head>
<body>
<nav>Home | Markets | Stocks</nav>
<main><p>%s</p></main>
<footer>Copyright notice</footer>
</body>
</html>`, body)
}

func TestExtractTranscriptFromArticle(t *testing.T) {
	result, err := extractTranscript(transcriptPage(transcriptBody()), "https://example.com/transcript")
	if err != nil {
		t.Fatalf("extractTranscript failed: %v", err)
	}

	if result.Title != "Apple (AAPL) Q2 2020 Earnings Call Transcript" {
		t.Errorf("unexpected title: %q", result.Title)
	}
	if result.Date != "2020-04-30" {
		t.Errorf("unexpected date: %q", result.Date)
	}
	if result.WordCount < minTranscriptWords {
		t.Errorf("word count too small: %d", result.WordCount)
	}
	if strings.Contains(result.Content, "Home | Markets") {
		t.Error("navigation chrome leaked into content")
	}
	if strings.Contains(result.Content, "Copyright notice") {
		t.Error("footer leaked into content")
	}
}

func TestExtractTranscriptRejectsShortPages(t *testing.T) {
	_, err := extractTranscript("<html><body><main>Too short.</main></body></html>", "https://example.com/x")
	if err == nil || !strings.Contains(err.Error(), "words") {
		t.Errorf("expected short-page rejection, got %v", err)
	}
}

func TestExtractPublishedDateFallbacks(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "meta published time",
			html: `<html><head><meta property="article:published_time" content="2019-07-30T21:00:00Z"></head><body></body></html>`,
			want: "2019-07-30",
		},
		{
			name: "time element",
			html: `<html><body><time datetime="2018-10-25">Oct 25</time></body></html>`,
			want: "2018-10-25",
		},
		{
			name: "no date",
			html: `<html><body><p>nothing</p></body></html>`,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got := extractPublishedDate(doc); got != tc.want {
				t.Errorf("extractPublishedDate = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParsePageDateFormats(t *testing.T) {
	cases := map[string]string{
		"2020-04-30T17:00:00Z": "2020-04-30",
		"2020-04-30":           "2020-04-30",
		"April 30, 2020":       "2020-04-30",
		"Apr 30, 2020":         "2020-04-30",
		"not a date":           "",
		"":                     "",
	}
	for input, want := range cases {
		if got := parsePageDate(input); got != want {
			t.Errorf("parsePageDate(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTranscriptFilename(t *testing.T) {
	name, err := transcriptFilename("AAPL", "2020-04-30")
	if err != nil {
		t.Fatalf("transcriptFilename failed: %v", err)
	}
	if name != "2020-Apr-30-AAPL.txt" {
		t.Errorf("unexpected filename: %q", name)
	}

	if _, err := transcriptFilename("AAPL", "04/30/2020"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestSaveWritesIntoCorpusLayout(t *testing.T) {
	root := t.TempDir()
	f := New(root, false)

	result := &Result{
		Title:   "Apple Q2 2020 Earnings Call",
		Content: transcriptBody(),
		Date:    "2020-04-30",
	}
	path, err := f.Save("AAPL", result)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	want := filepath.Join(root, "aapl", "2020-Apr-30-AAPL.txt")
	if path != want {
		t.Errorf("saved to %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved transcript: %v", err)
	}
	if !strings.HasPrefix(string(data), "Apple Q2 2020 Earnings Call\n\n") {
		t.Error("title header missing from saved file")
	}

	files, err := corpus.CompanyFiles(root, "AAPL")
	if err != nil {
		t.Fatalf("CompanyFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Date != "2020-04-30" {
		t.Errorf("corpus scan does not see the saved transcript: %+v", files)
	}

	if _, err := f.Save("TSLA", result); err == nil {
		t.Error("expected error for unsupported symbol")
	}
}
