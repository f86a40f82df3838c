// Package chunker splits text into overlapping fixed-size windows.
package chunker

import (
	"unicode/utf8"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of characters shared by consecutive chunks.
const DefaultChunkOverlap = 150

// Chunker splits text by rune count, so multi-byte characters are never cut.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New creates a chunker. Size must be positive and overlap in [0, size).
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, domain.InvalidArgf("chunk size must be positive, got %d", c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, domain.InvalidArgf("chunk overlap must be in [0,%d), got %d", c.size, c.overlap)
	}
	return c, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns consecutive windows of at most Size characters, each starting
// Size-Overlap characters after the previous one. The last window ends at the
// end of text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	n := utf8.RuneCountInString(text)
	if n <= c.size {
		return []string{text}
	}

	// Byte offset of every rune plus the end, so windows slice the original string.
	offsets := make([]int, 0, n+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))

	step := c.size - c.overlap
	chunks := make([]string, 0, (n-c.overlap+step-1)/step)
	for start := 0; ; start += step {
		end := min(start+c.size, n)
		chunks = append(chunks, text[offsets[start]:offsets[end]])
		if end == n {
			break
		}
	}
	return chunks
}

// Split is a one-shot helper around New and Chunker.Split.
func Split(text string, size, overlap int) ([]string, error) {
	c, err := New(WithChunkSize(size), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}
