// Package chunker splits source text into overlapping token windows for
// embedding and retrieval.
//
// A token is a whitespace-delimited word. Windows advance by
// (size - overlap) tokens, so consecutive pieces share exactly the
// configured overlap. When a window would cut a sentence in half, the cut
// moves back to the last sentence boundary inside the window, so a piece
// only ends mid-sentence when the sentence itself outgrows the window.
package chunker

import (
	"errors"
	"strings"
	"unicode"
)

// Default window geometry, in tokens.
const (
	// DefaultChunkSize is the default window size.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the default number of tokens shared between
	// consecutive pieces.
	DefaultChunkOverlap = 120
)

// Sentinel errors for chunking operations. Check with errors.Is().
var (
	// ErrEmptyInput indicates the text contained no tokens.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidChunkSize indicates a non-positive window size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates the overlap is negative or not smaller
	// than the window.
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")
)

// Piece is one window of the source text.
type Piece struct {
	// Text is the original text spanned by the window, with interior
	// whitespace preserved.
	Text string

	// TokenStart and TokenEnd bound the half-open token range
	// [TokenStart, TokenEnd) within the source text.
	TokenStart int
	TokenEnd   int
}

// Tokens returns the number of tokens the piece spans.
func (p Piece) Tokens() int { return p.TokenEnd - p.TokenStart }

// Chunker splits text into overlapping windows. It is stateless and safe
// for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window size and overlap, both in
// tokens. The overlap must be smaller than the window.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with the standard window geometry.
func Default() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// Split cuts text into overlapping pieces. Consecutive pieces share exactly
// the configured overlap. The final piece may be shorter than the window
// and is always emitted, even when it is shorter than the overlap itself.
// Whitespace-only input fails with ErrEmptyInput.
func (c *Chunker) Split(text string) ([]Piece, error) {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, ErrEmptyInput
	}

	pieces := make([]Piece, 0, len(toks)/(c.size-c.overlap)+1)
	start := 0
	for {
		end := start + c.size
		if end >= len(toks) {
			pieces = append(pieces, pieceAt(text, toks, start, len(toks)))
			return pieces, nil
		}
		// Pull the cut back to the last sentence end inside the window.
		// The lower bound keeps the next window strictly advancing.
		if b := lastSentenceEnd(text, toks, start+c.overlap+1, end); b > 0 {
			end = b
		}
		pieces = append(pieces, pieceAt(text, toks, start, end))
		start = end - c.overlap
	}
}

// span records the byte range of one token within the source text.
type span struct {
	start, end int
}

func tokenize(text string) []span {
	var toks []span
	inToken := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inToken {
				toks = append(toks, span{start, i})
				inToken = false
			}
			continue
		}
		if !inToken {
			start = i
			inToken = true
		}
	}
	if inToken {
		toks = append(toks, span{start, len(text)})
	}
	return toks
}

func pieceAt(text string, toks []span, start, end int) Piece {
	return Piece{
		Text:       text[toks[start].start:toks[end-1].end],
		TokenStart: start,
		TokenEnd:   end,
	}
}

// lastSentenceEnd returns the largest cut position b in [lo, hi] whose
// preceding token ends a sentence, or 0 when no such position exists.
func lastSentenceEnd(text string, toks []span, lo, hi int) int {
	for b := hi; b >= lo; b-- {
		tok := text[toks[b-1].start:toks[b-1].end]
		if endsSentence(tok) {
			return b
		}
	}
	return 0
}

// endsSentence reports whether a token terminates a sentence. Terminators
// may be followed by closing quotes or brackets, as in `stop!")`.
// Abbreviations such as "e.g." are not special-cased.
func endsSentence(tok string) bool {
	t := strings.TrimRight(tok, `"'’”)]`)
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
