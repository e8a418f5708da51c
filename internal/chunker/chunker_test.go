package chunker

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr error
	}{
		{name: "valid", size: 800, overlap: 120},
		{name: "zero overlap", size: 10, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: ErrInvalidChunkSize},
		{name: "negative size", size: -5, overlap: 0, wantErr: ErrInvalidChunkSize},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: ErrInvalidOverlap},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: ErrInvalidOverlap},
		{name: "overlap exceeds size", size: 10, overlap: 11, wantErr: ErrInvalidOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := New(tt.size, tt.overlap)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New(%d, %d) error = %v, want %v", tt.size, tt.overlap, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%d, %d) unexpected error: %v", tt.size, tt.overlap, err)
			}
			if c == nil {
				t.Fatal("New returned nil chunker without error")
			}
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "empty string", text: ""},
		{name: "whitespace only", text: "  \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Default().Split(tt.text)
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("Split(%q) error = %v, want ErrEmptyInput", tt.text, err)
			}
		})
	}
}

func TestSplit_ShortInputSinglePiece(t *testing.T) {
	t.Parallel()

	// Three tokens, far below both the default window and the default
	// overlap. The single short piece must still come back.
	text := "alpha beta gamma"
	pieces, err := Default().Split(text)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if len(pieces) != 1 {
		t.Fatalf("Split() returned %d pieces, want 1", len(pieces))
	}
	p := pieces[0]
	if p.TokenStart != 0 || p.TokenEnd != 3 {
		t.Errorf("piece range = [%d, %d), want [0, 3)", p.TokenStart, p.TokenEnd)
	}
	if p.Text != text {
		t.Errorf("piece text = %q, want %q", p.Text, text)
	}
}

func TestSplit_ExactOverlap(t *testing.T) {
	t.Parallel()

	const (
		size    = 10
		overlap = 3
		n       = 25
	)
	c, err := New(size, overlap)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	pieces, err := c.Split(words(n))
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}

	// With no sentence boundaries the windows advance by size-overlap.
	wantRanges := [][2]int{{0, 10}, {7, 17}, {14, 24}, {21, 25}}
	if len(pieces) != len(wantRanges) {
		t.Fatalf("Split() returned %d pieces, want %d", len(pieces), len(wantRanges))
	}
	for i, p := range pieces {
		if p.TokenStart != wantRanges[i][0] || p.TokenEnd != wantRanges[i][1] {
			t.Errorf("piece %d range = [%d, %d), want [%d, %d)",
				i, p.TokenStart, p.TokenEnd, wantRanges[i][0], wantRanges[i][1])
		}
		if p.Tokens() > size {
			t.Errorf("piece %d spans %d tokens, exceeds window %d", i, p.Tokens(), size)
		}
	}
	for i := 1; i < len(pieces); i++ {
		shared := pieces[i-1].TokenEnd - pieces[i].TokenStart
		if shared != overlap {
			t.Errorf("pieces %d/%d share %d tokens, want %d", i-1, i, shared, overlap)
		}
	}
}

func TestSplit_CoversAllTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		overlap int
		n       int
	}{
		{name: "several windows", size: 10, overlap: 3, n: 57},
		{name: "single window exact", size: 10, overlap: 3, n: 10},
		{name: "no overlap", size: 8, overlap: 0, n: 30},
		{name: "wide overlap", size: 12, overlap: 9, n: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := New(tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			pieces, err := c.Split(words(tt.n))
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}

			if first := pieces[0].TokenStart; first != 0 {
				t.Errorf("first piece starts at token %d, want 0", first)
			}
			if last := pieces[len(pieces)-1].TokenEnd; last != tt.n {
				t.Errorf("last piece ends at token %d, want %d", last, tt.n)
			}
			for i := 1; i < len(pieces); i++ {
				if pieces[i].TokenStart > pieces[i-1].TokenEnd {
					t.Errorf("gap between pieces %d and %d: [..%d) then [%d..)",
						i-1, i, pieces[i-1].TokenEnd, pieces[i].TokenStart)
				}
				if pieces[i].TokenStart <= pieces[i-1].TokenStart {
					t.Errorf("piece %d does not advance past piece %d", i, i-1)
				}
			}
		})
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	t.Parallel()

	c, err := New(8, 2)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	// Token 4 ("here.") ends a sentence inside the first window [0, 8),
	// so the cut moves back to token 5 instead of splitting the second
	// sentence in half.
	text := "The first sentence ends here. The second sentence is rather longer than the first one entirely."
	pieces, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}

	if got := pieces[0].TokenEnd; got != 5 {
		t.Fatalf("first piece ends at token %d, want 5", got)
	}
	if !strings.HasSuffix(pieces[0].Text, "here.") {
		t.Errorf("first piece text = %q, want suffix %q", pieces[0].Text, "here.")
	}
	if got := pieces[1].TokenStart; got != 3 {
		t.Errorf("second piece starts at token %d, want 3 (end minus overlap)", got)
	}
}

func TestSplit_LongSentenceHardCut(t *testing.T) {
	t.Parallel()

	c, err := New(10, 3)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	// One 30-token sentence with no terminators until the very end. The
	// window has no boundary to fall back to and must cut at full size.
	var b strings.Builder
	for i := range 29 {
		fmt.Fprintf(&b, "w%d ", i)
	}
	b.WriteString("done.")

	pieces, err := c.Split(b.String())
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if got := pieces[0].TokenEnd; got != 10 {
		t.Errorf("first piece ends at token %d, want 10", got)
	}
}

func TestSplit_FinalShortTail(t *testing.T) {
	t.Parallel()

	const (
		size    = 10
		overlap = 3
		n       = 32
	)
	c, err := New(size, overlap)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	pieces, err := c.Split(words(n))
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}

	last := pieces[len(pieces)-1]
	if last.TokenEnd != n {
		t.Fatalf("last piece ends at token %d, want %d", last.TokenEnd, n)
	}
	if last.Tokens() >= size {
		t.Errorf("last piece spans %d tokens, expected a short tail below %d", last.Tokens(), size)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	c, err := New(10, 3)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	text := words(47)

	first, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	second, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Split() is not deterministic across calls")
	}
}

func TestEndsSentence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tok  string
		want bool
	}{
		{tok: "here.", want: true},
		{tok: "stop!", want: true},
		{tok: "why?", want: true},
		{tok: `quoted."`, want: true},
		{tok: `nested.")`, want: true},
		{tok: "plain", want: false},
		{tok: "comma,", want: false},
		{tok: `"`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			t.Parallel()

			if got := endsSentence(tt.tok); got != tt.want {
				t.Errorf("endsSentence(%q) = %v, want %v", tt.tok, got, tt.want)
			}
		})
	}
}

// words builds a space-separated input of n tokens with no sentence
// terminators, so window math is not disturbed by boundary snapping.
func words(n int) string {
	var b strings.Builder
	for i := range n {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "t%d", i)
	}
	return b.String()
}
