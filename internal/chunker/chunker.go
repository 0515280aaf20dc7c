// Package chunker splits article content into overlapping token windows
// sized for embedding-model input limits.
package chunker

import (
	"fmt"
	"strings"
)

// Defaults match the embedding model's sweet spot: 400-token windows with a
// 50-token overlap so no sentence is orphaned at a chunk boundary.
const (
	DefaultChunkSize = 400
	DefaultOverlap   = 50
)

// Tokenizer encodes text to token ids and back. The production tokenizer is
// tiktoken's cl100k_base; tests substitute a whitespace tokenizer.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker produces overlapping chunks from article paragraphs.
type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

// New validates the window geometry. Overlap must be strictly smaller than
// the chunk size or the stride would never advance.
func New(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d for size %d", overlap, size)
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

// Chunk joins the paragraphs with a single separator and slides a window of
// size tokens with stride size-overlap. The loop ends once the start
// position reaches the total token count, and a zero-length tail is never
// emitted. Empty or whitespace-only content yields no chunks.
func (c *Chunker) Chunk(paragraphs []string) []string {
	merged := strings.Join(paragraphs, " ")
	if strings.TrimSpace(merged) == "" {
		return nil
	}

	tokens := c.tok.Encode(merged)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += stride {
		end := min(start+c.size, len(tokens))
		text := c.tok.Decode(tokens[start:end])
		if len(text) > 0 {
			chunks = append(chunks, text)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
