package loader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docchat/types"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 0
)

var DefaultSeparators = []string{"\n", " ", ""}

// Splitter cuts text recursively on the most specific separator that is
// present, so that no chunk is longer than size runes.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func NewSplitter(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", types.ErrConfiguration, overlap, size)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}

	seps := make([]string, 0, len(separators)+1)
	for _, s := range separators {
		if s != "" {
			seps = append(seps, s)
		}
	}
	// character boundary is always the last resort
	seps = append(seps, "")

	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Split chunks every segment. Chunk indexes run across all segments.
func (s *Splitter) Split(segments []types.Segment) []types.Chunk {
	var chunks []types.Chunk
	for _, seg := range segments {
		for _, text := range s.SplitText(seg.Text) {
			chunks = append(chunks, types.Chunk{
				Source:  seg.Source,
				Page:    seg.Page,
				Index:   len(chunks),
				Content: text,
			})
		}
	}
	return chunks
}

func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge joins pieces into chunks of at most size runes, carrying up to
// overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var (
		out     []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		l := runeLen(p)
		if total+l+joinLen() > s.size && len(current) > 0 {
			if doc := join(current, separator); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (total > 0 && total+l+joinLen() > s.size) {
				dropped := runeLen(current[0])
				if len(current) > 1 {
					dropped += sepLen
				}
				total -= dropped
				current = current[1:]
			}
		}
		total += l + joinLen()
		current = append(current, p)
	}
	if doc := join(current, separator); doc != "" {
		out = append(out, doc)
	}
	return out
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, separator)
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func join(parts []string, separator string) string {
	return strings.TrimSpace(strings.Join(parts, separator))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
