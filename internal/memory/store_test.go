package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/log"
)

// mkTurn builds a turn whose question and answer each estimate to
// qTokens and aTokens.
func mkTurn(seq, qTokens, aTokens int) Turn {
	return Turn{
		Seq:      seq,
		Question: strings.Repeat("q", qTokens*2),
		Answer:   strings.Repeat("a", aTokens*2),
	}
}

func TestTurnTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		turn Turn
		want int
	}{
		{name: "empty", turn: Turn{}, want: 0},
		{name: "ascii", turn: Turn{Question: "abcdef", Answer: "ab"}, want: 4},
		{name: "multibyte runes count once", turn: Turn{Question: "你好世界"}, want: 2},
		{name: "odd lengths round down", turn: Turn{Question: "abc", Answer: "a"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TurnTokens(tt.turn); got != tt.want {
				t.Errorf("TurnTokens = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTrimToBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		turns    []Turn
		budget   int
		wantSeqs []int
	}{
		{
			name:     "all fit",
			turns:    []Turn{mkTurn(3, 2, 2), mkTurn(2, 2, 2), mkTurn(1, 2, 2)},
			budget:   12,
			wantSeqs: []int{3, 2, 1},
		},
		{
			name:     "exact fit keeps everything",
			turns:    []Turn{mkTurn(2, 2, 2), mkTurn(1, 2, 2)},
			budget:   8,
			wantSeqs: []int{2, 1},
		},
		{
			name:     "oldest dropped first",
			turns:    []Turn{mkTurn(3, 2, 2), mkTurn(2, 2, 2), mkTurn(1, 2, 2)},
			budget:   8,
			wantSeqs: []int{3, 2},
		},
		{
			name:     "oversized turn ends the window, older survivors are not pulled in",
			turns:    []Turn{mkTurn(3, 2, 2), mkTurn(2, 50, 50), mkTurn(1, 1, 1)},
			budget:   10,
			wantSeqs: []int{3},
		},
		{
			name:     "newest alone over budget yields empty context",
			turns:    []Turn{mkTurn(1, 50, 50)},
			budget:   10,
			wantSeqs: []int{},
		},
		{
			name:     "zero budget yields empty context",
			turns:    []Turn{mkTurn(1, 1, 1)},
			budget:   0,
			wantSeqs: []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := trimToBudget(tt.turns, tt.budget)
			if len(got) != len(tt.wantSeqs) {
				t.Fatalf("kept %d turns, want %d", len(got), len(tt.wantSeqs))
			}
			for i, want := range tt.wantSeqs {
				if got[i].Seq != want {
					t.Errorf("turn %d has seq %d, want %d", i, got[i].Seq, want)
				}
			}
		})
	}
}

func TestNewStore_RequiresPool(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(nil, log.NewNop()); err == nil {
		t.Fatal("NewStore(nil, ...) should fail")
	}
}

func TestBegin_RequiresTenant(t *testing.T) {
	t.Parallel()

	store := &Store{logger: log.NewNop()}
	if _, err := store.Begin(context.Background(), "", ""); !errors.Is(err, ErrMissingTenant) {
		t.Errorf("got %v, want ErrMissingTenant", err)
	}
}

func TestAppendTurn_Validation(t *testing.T) {
	t.Parallel()

	store := &Store{logger: log.NewNop()}

	_, err := store.AppendTurn(context.Background(), "", uuid.New(), TurnInput{Question: "q"})
	if !errors.Is(err, ErrMissingTenant) {
		t.Errorf("missing tenant: got %v, want ErrMissingTenant", err)
	}

	_, err = store.AppendTurn(context.Background(), "acme", uuid.New(), TurnInput{Answer: "a"})
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("empty question: got %v, want ErrEmptyQuestion", err)
	}
}

func TestContext_NonPositiveBudgetIsEmpty(t *testing.T) {
	t.Parallel()

	store := &Store{logger: log.NewNop()}

	turns, err := store.Context(context.Background(), "acme", uuid.New(), 0)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns for zero budget, want 0", len(turns))
	}
}
