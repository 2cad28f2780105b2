// Package ingest turns uploaded documents into numbered chunks with
// provenance metadata, reporting progress as a small event stream.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators orders split boundaries from coarse to fine. The empty
// separator is the hard rune-cut fallback.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks, preferring the coarsest
// separator that still fits the size budget.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter. Zero or invalid values fall back to
// size 1000, overlap 200 and the default separators.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 200
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, separators: DefaultSeparators}
}

// Split cuts text into chunks of at most the configured size, with the
// configured overlap carried between adjacent chunks. Recursion only cuts;
// overlap is applied in a single merge pass so it never stacks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.merge(s.pieces(text, s.separators))
}

// pieces cuts text at the coarsest contained separator, recursing on
// fragments that still exceed the size budget. Every returned piece fits
// within chunkSize runes.
func (s *Splitter) pieces(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardCut(text)
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > s.chunkSize {
			out = append(out, s.pieces(p, rest)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks, seeding each new chunk with the
// overlap tail of the previous one. The seed is trimmed when the next piece
// would not fit beside it, so no chunk exceeds chunkSize runes.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []rune
	seeded := 0

	for _, p := range pieces {
		r := []rune(p)
		if len(current) > seeded && len(current)+len(r) > s.chunkSize {
			if chunk := strings.TrimSpace(string(current)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			seed := s.overlap
			if room := s.chunkSize - len(r); room < seed {
				seed = room
			}
			if seed > len(current) {
				seed = len(current)
			}
			if seed < 0 {
				seed = 0
			}
			current = append([]rune(nil), current[len(current)-seed:]...)
			seeded = len(current)
		}
		current = append(current, r...)
	}
	// A bare seed with nothing after it would only echo the previous chunk.
	if len(current) > seeded {
		if chunk := strings.TrimSpace(string(current)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// hardCut slices by rune count when no separator fits. Fragments leave room
// for the overlap seed the merge pass prepends.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + step
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
