package ingestion

import (
	"strings"
	"unicode"
)

const boundaryLookback = 100

// Splitter cuts text into overlapping windows. Windows are at most
// chunkSize runes and consecutive windows share at least chunkOverlap
// runes, so no sentence is stranded on a chunk boundary. Cuts prefer a
// whitespace boundary within a bounded lookback.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize-boundaryLookback {
		chunkOverlap = 50
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split returns the windows in original order. Blank input yields no
// chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := s.cutPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - s.chunkOverlap
	}

	return chunks
}

// cutPoint scans back from end for whitespace, bounded so the next window
// always makes forward progress past the overlap.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	floor := end - boundaryLookback
	if min := start + s.chunkOverlap + 1; floor < min {
		floor = min
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
