package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoTranscriptDir indicates a supported company has no transcript
// directory under the corpus root.
var ErrNoTranscriptDir = errors.New("no transcript directory")

// TranscriptFile is a single transcript discovered on disk.
type TranscriptFile struct {
	Company  string // ticker symbol, upper case
	Path     string
	Filename string
	Size     int64
	Date     string // normalized YYYY-MM-DD or DateUnknown
	Quarter  string
}

// DocumentID returns the stable identifier for this transcript.
func (f TranscriptFile) DocumentID() string {
	return DocumentID(f.Company, f.Filename)
}

// ScanResult holds everything found under the transcripts directory.
type ScanResult struct {
	Root      string
	Files     map[string][]TranscriptFile // keyed by ticker symbol
	TotalSize int64
}

// Scan walks the transcripts directory. The expected layout is one
// subdirectory per company, named with the lowercase ticker symbol,
// containing .txt or .pdf transcript files.
func Scan(root string) (*ScanResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcripts directory %s: %w", root, err)
	}

	result := &ScanResult{
		Root:  root,
		Files: make(map[string][]TranscriptFile),
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		symbol := strings.ToUpper(entry.Name())
		if !IsSupported(symbol) {
			continue
		}

		files, err := scanCompanyDir(filepath.Join(root, entry.Name()), symbol)
		if err != nil {
			return nil, err
		}
		result.Files[symbol] = files
		for _, f := range files {
			result.TotalSize += f.Size
		}
	}

	return result, nil
}

// CompanyFiles returns the transcripts for one company, scanning only its
// subdirectory.
func CompanyFiles(root, symbol string) ([]TranscriptFile, error) {
	symbol = strings.ToUpper(symbol)
	if !IsSupported(symbol) {
		return nil, fmt.Errorf("unsupported company symbol: %s", symbol)
	}

	dir := filepath.Join(root, strings.ToLower(symbol))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w for %s at %s", ErrNoTranscriptDir, symbol, dir)
	}
	return scanCompanyDir(dir, symbol)
}

func scanCompanyDir(dir, symbol string) ([]TranscriptFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read company directory %s: %w", dir, err)
	}

	var files []TranscriptFile
	for _, entry := range entries {
		if entry.IsDir() || !isTranscriptFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		date := ExtractDate(entry.Name())
		files = append(files, TranscriptFile{
			Company:  symbol,
			Path:     filepath.Join(dir, entry.Name()),
			Filename: entry.Name(),
			Size:     info.Size(),
			Date:     date,
			Quarter:  QuarterFromDate(date),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

func isTranscriptFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// TotalFiles counts all transcripts across companies.
func (r *ScanResult) TotalFiles() int {
	total := 0
	for _, files := range r.Files {
		total += len(files)
	}
	return total
}

// TotalSizeMB returns the corpus size in megabytes.
func (r *ScanResult) TotalSizeMB() float64 {
	return float64(r.TotalSize) / (1024 * 1024)
}

// AverageFilesPerCompany reports mean transcript count over companies
// that have at least one file.
func (r *ScanResult) AverageFilesPerCompany() float64 {
	if len(r.Files) == 0 {
		return 0
	}
	return float64(r.TotalFiles()) / float64(len(r.Files))
}

// Validate checks corpus completeness and returns human-readable issues.
// An empty slice means the corpus looks healthy.
func (r *ScanResult) Validate() []string {
	var issues []string

	var missing []string
	for _, symbol := range Symbols() {
		if _, ok := r.Files[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("Missing transcript directories for: %s", strings.Join(missing, ", ")))
	}

	for _, symbol := range Symbols() {
		files, ok := r.Files[symbol]
		if !ok {
			continue
		}
		if len(files) < 5 {
			issues = append(issues, fmt.Sprintf("%s: only %d transcript files (expected ~19)", symbol, len(files)))
		}

		invalid := 0
		var totalSize int64
		for _, f := range files {
			if f.Date == DateUnknown {
				invalid++
			}
			totalSize += f.Size
		}
		if invalid > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d files with unrecognized date format", symbol, invalid))
		}
		if len(files) > 0 {
			avgKB := float64(totalSize) / float64(len(files)) / 1024
			if avgKB < 1.0 {
				issues = append(issues, fmt.Sprintf("%s: average file size only %.1fKB - files may be truncated", symbol, avgKB))
			}
		}
	}

	return issues
}
