// Package chunker splits transcript text into sentence-aligned chunks
// sized for embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxChars is the chunk size limit used when none is configured.
const DefaultMaxChars = 512

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// Chunker accumulates whole sentences into chunks of at most maxChars
// characters. A single sentence longer than the limit is kept intact.
type Chunker struct {
	maxChars int
}

func New(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Chunker{maxChars: maxChars}
}

// Split breaks text on sentence boundaries and packs sentences into
// chunks. Empty fragments are dropped.
func (c *Chunker) Split(text string) []string {
	sentences := sentenceBoundary.Split(text, -1)

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(sentence) > c.maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// ChunkID builds the logical identifier for one chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}
