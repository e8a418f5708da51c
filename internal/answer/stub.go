package answer

import (
	"fmt"
	"strings"

	"github.com/docent-ai/docent/internal/retrieval"
)

// stubSnippetLimit caps how many snippets an extractive answer quotes.
const stubSnippetLimit = 3

// noInformationMessage answers queries with no usable retrieval hits.
const noInformationMessage = "No relevant information found in the knowledge base."

// Extractive renders the generation-free answer: the top retrieved
// snippets verbatim, each attributed to its source title.
func Extractive(results []retrieval.Result) string {
	if len(results) == 0 {
		return noInformationMessage
	}

	n := min(len(results), stubSnippetLimit)
	var b strings.Builder
	for i, r := range results[:n] {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "From %q:\n%s", r.SourceTitle, strings.TrimSpace(r.Content))
	}
	return b.String()
}
