package services

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"financial-transcripts-rag/internal/logger"
)

// EmbeddingCache persists embeddings on disk so repeated ingestion runs
// skip already-embedded chunks. Entries are keyed by the MD5 of the
// chunk text and invalidated when the embedding model changes.
type EmbeddingCache struct {
	dir   string
	model string
}

type cachedEmbedding struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// CacheStats summarizes the on-disk cache contents.
type CacheStats struct {
	Entries   int
	SizeBytes int64
	Directory string
	Model     string
}

// NewEmbeddingCache creates the cache directory if needed.
func NewEmbeddingCache(dir, model string) (*EmbeddingCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create embedding cache directory: %w", err)
	}
	return &EmbeddingCache{dir: dir, model: model}, nil
}

// Key returns the cache key for a chunk of text.
func (c *EmbeddingCache) Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached embedding for text, or false when the entry is
// missing, unreadable, or was produced by a different model.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	data, err := os.ReadFile(c.entryPath(c.Key(text)))
	if err != nil {
		return nil, false
	}

	var entry cachedEmbedding
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("Discarding corrupt embedding cache entry", "key", c.Key(text), "error", err)
		return nil, false
	}
	if entry.Model != c.model {
		return nil, false
	}
	return entry.Embedding, true
}

// Put stores an embedding for text under the current model.
func (c *EmbeddingCache) Put(text string, embedding []float32) error {
	entry := cachedEmbedding{Text: text, Embedding: embedding, Model: c.model}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode embedding cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(c.Key(text)), data, 0o644); err != nil {
		return fmt.Errorf("failed to write embedding cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached entry and returns how many were deleted.
func (c *EmbeddingCache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove cache entry %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Stats walks the cache directory and reports entry count and total size.
func (c *EmbeddingCache) Stats() (CacheStats, error) {
	stats := CacheStats{Directory: c.dir, Model: c.model}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, fmt.Errorf("failed to read embedding cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.SizeBytes += info.Size()
	}
	return stats, nil
}

// SizeMB converts the total cache size to megabytes.
func (s CacheStats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}
