package chunker

import (
	"fmt"
	"strings"
)

// separators are tried in order: paragraph breaks first, then lines, then
// sentences, then words, with a hard character cut as the last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveSplitter breaks text into chunks of at most chunkSize characters,
// preferring splits at natural boundaries and carrying roughly chunkOverlap
// characters of trailing context into each following chunk.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &RecursiveSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split returns the chunks of text, each trimmed and non-empty. Whitespace-only
// input yields no chunks.
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, separators)
}

func (s *RecursiveSplitter) split(text string, seps []string) []string {
	sep, rest := s.pickSeparator(text, seps)

	var final []string
	var goods []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if len(piece) < s.chunkSize {
			goods = append(goods, piece)
			continue
		}
		// Piece is itself oversized: flush what we have, then recurse on it
		// with the remaining finer separators.
		if len(goods) > 0 {
			final = append(final, s.merge(goods, sep)...)
			goods = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(goods) > 0 {
		final = append(final, s.merge(goods, sep)...)
	}
	return final
}

// pickSeparator finds the coarsest separator that actually occurs in text and
// returns it along with the finer separators left to recurse into.
func (s *RecursiveSplitter) pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// splitKeepSeparator splits text on sep, keeping the separator attached to the
// end of each preceding piece so no characters are lost. An empty separator
// cuts the text into individual characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge joins adjacent pieces into chunks no longer than chunkSize, sliding a
// window so each chunk starts with up to chunkOverlap characters of the
// previous chunk's tail.
func (s *RecursiveSplitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		if total+len(piece) > s.chunkSize && total > 0 {
			if c := strings.TrimSpace(strings.Join(window, "")); c != "" {
				chunks = append(chunks, c)
			}
			// Drop from the front until only the overlap (or room for the
			// incoming piece) remains.
			for total > s.chunkOverlap || (total+len(piece) > s.chunkSize && total > 0) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}

	if c := strings.TrimSpace(strings.Join(window, "")); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}
