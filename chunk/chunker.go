package chunk

import (
	"fmt"
	"strings"
)

// searchRadius is how far either side of the tentative end a boundary is looked for.
const searchRadius = 100

// Default sizes, in characters.
const (
	DefaultSize    = 1200
	DefaultOverlap = 200
)

// delimiter is a boundary candidate and how many of its characters stay with
// the chunk that ends there.
type delimiter struct {
	text     []rune
	consumed int
}

// delimiters in priority order. Whitespace breaks are consumed whole;
// punctuation pairs keep only the period so the cut lands right after it.
var delimiters = []delimiter{
	{text: []rune("\n\n"), consumed: 2},
	{text: []rune(". "), consumed: 1},
	{text: []rune(".\n"), consumed: 1},
	{text: []rune("\n"), consumed: 1},
	{text: []rune(" "), consumed: 1},
}

// Chunker splits text into overlapping, boundary-aware chunks.
// A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker producing chunks of about size characters that
// overlap by overlap characters. overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the target chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the trimmed, non-empty chunks of text in order.
func (c *Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}

	runes := []rune(trimmed)
	if len(runes) <= c.size {
		return []string{trimmed}
	}

	spans := c.spans(runes)
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		if piece := strings.TrimSpace(string(runes[s.start:s.end])); piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

type span struct {
	start, end int
}

// spans walks the text and returns the untrimmed rune ranges of each chunk.
// start strictly increases on every pass, so the loop ends after at most
// len(runes) iterations and in practice after about len/(size-overlap).
func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	var out []span
	start := 0
	for start < n {
		end := min(start+c.size, n)
		if end >= n {
			out = append(out, span{start: start, end: n})
			break
		}

		cut := boundary(runes, start, end)
		out = append(out, span{start: start, end: cut})
		start = max(start+1, cut-c.overlap)
	}
	return out
}

// boundary picks the cut point for a chunk starting at start whose tentative
// end is end. The first delimiter, in priority order, whose last occurrence
// lies past the middle of the search window wins.
func boundary(runes []rune, start, end int) int {
	windowStart := max(start, end-searchRadius)
	windowEnd := min(end+searchRadius, len(runes))
	window := runes[windowStart:windowEnd]
	half := len(window) / 2

	for _, d := range delimiters {
		if pos := lastIndex(window, d.text); pos != -1 && pos > half {
			return windowStart + pos + d.consumed
		}
	}
	return end
}

// lastIndex returns the index of the last occurrence of sep in s, or -1.
func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
