package corpus

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTranscriptBytes caps in-memory transcript reads. Earnings call
// transcripts run tens of kilobytes; anything near this limit is not one.
const maxTranscriptBytes = 50 << 20

// ReadTranscript returns the plain text of a transcript file. Text files
// are read as-is, PDF files are extracted page by page.
func ReadTranscript(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat transcript %s: %w", path, err)
	}
	if info.Size() > maxTranscriptBytes {
		return "", fmt.Errorf("transcript %s too large (%d bytes)", path, info.Size())
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read transcript %s: %w", path, err)
		}
		return string(content), nil
	case ".pdf":
		return readPDFText(path)
	default:
		return "", fmt.Errorf("unsupported transcript format %q", filepath.Ext(path))
	}
}

func readPDFText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF %s: %w", path, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text extracted from %s", path)
	}
	return b.String(), nil
}
