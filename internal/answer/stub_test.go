package answer

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/retrieval"
)

func TestExtractive_NoHits(t *testing.T) {
	t.Parallel()

	if got := Extractive(nil); got != noInformationMessage {
		t.Errorf("Extractive(nil) = %q, want %q", got, noInformationMessage)
	}
}

func TestExtractive_QuotesTopSnippetsVerbatim(t *testing.T) {
	t.Parallel()

	results := []retrieval.Result{
		result(uuid.New(), "First", "alpha content", 0.9),
		result(uuid.New(), "Second", "beta content", 0.8),
		result(uuid.New(), "Third", "gamma content", 0.7),
		result(uuid.New(), "Fourth", "delta content", 0.6),
	}

	got := Extractive(results)
	for _, want := range []string{`From "First"`, "alpha content", `From "Second"`, `From "Third"`} {
		if !strings.Contains(got, want) {
			t.Errorf("extractive answer missing %q", want)
		}
	}
	if strings.Contains(got, "Fourth") {
		t.Error("extractive answer should stop at the snippet limit")
	}
}
