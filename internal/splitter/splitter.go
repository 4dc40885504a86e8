// Package splitter turns raw document text into overlapping character-bounded
// segments for embedding and entity extraction.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// Splitter splits text on a separator and merges the resulting sections into
// chunks of at most ChunkSize characters, carrying ChunkOverlap characters of
// the previous chunk into the next one so mentions spanning a boundary stay
// interpretable in at least one chunk. Sizes count runes, not bytes; chunks
// never begin or end mid-rune.
type Splitter struct {
	Separator    string
	ChunkSize    int
	ChunkOverlap int
}

// New creates a Splitter. Zero values fall back to the defaults used for the
// ingested corpus: "\n\n" separator, 1500-character chunks, 200-character
// overlap.
func New(separator string, chunkSize, chunkOverlap int) *Splitter {
	if separator == "" {
		separator = "\n\n"
	}
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{Separator: separator, ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split returns the ordered chunks for text. Pure function, no state.
func (s *Splitter) Split(text string) []string {
	sections := s.sections(text)
	if len(sections) == 0 {
		return nil
	}

	sepLen := utf8.RuneCountInString(s.Separator)
	var chunks []string
	cur, curLen := "", 0
	for _, sec := range sections {
		secLen := utf8.RuneCountInString(sec)
		switch {
		case cur == "":
			cur, curLen = sec, secLen
		case curLen+sepLen+secLen <= s.ChunkSize:
			cur += s.Separator + sec
			curLen += sepLen + secLen
		default:
			chunks = append(chunks, cur)
			tail := overlapTail(cur, s.ChunkOverlap)
			tailLen := utf8.RuneCountInString(tail)
			if tail != "" && tailLen+sepLen+secLen <= s.ChunkSize {
				cur, curLen = tail+s.Separator+sec, tailLen+sepLen+secLen
			} else {
				cur, curLen = sec, secLen
			}
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// sections splits on the separator, discards blanks, and hard-wraps any
// single section longer than ChunkSize. Wrapping slices on rune boundaries.
func (s *Splitter) sections(text string) []string {
	var out []string
	for _, sec := range strings.Split(text, s.Separator) {
		sec = strings.TrimSpace(sec)
		if sec == "" {
			continue
		}
		runes := []rune(sec)
		for len(runes) > s.ChunkSize {
			out = append(out, string(runes[:s.ChunkSize]))
			step := s.ChunkSize - s.ChunkOverlap
			runes = []rune(strings.TrimSpace(string(runes[step:])))
		}
		if len(runes) > 0 {
			out = append(out, string(runes))
		}
	}
	return out
}

// overlapTail returns the last n runes of chunk, or the whole chunk if it is
// shorter than n.
func overlapTail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return chunk
	}
	return string(runes[len(runes)-n:])
}
