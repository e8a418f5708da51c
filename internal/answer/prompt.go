package answer

import (
	"fmt"
	"strings"

	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/retrieval"
)

// systemPreamble keeps the model inside the retrieved context.
const systemPreamble = "You are a knowledge assistant answering questions for one organization. " +
	"Use only the context passages provided with the question. " +
	"Name the source titles you draw from. " +
	"If the passages do not contain the answer, say so plainly instead of guessing."

// Prompt is one assembled generation request.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the generation prompt: context passages tagged
// with their source titles, the prior conversation, and the current
// question last. history arrives most recent first, as the memory store
// returns it, and is rendered oldest first so the transcript reads in
// order.
func BuildPrompt(question string, results []retrieval.Result, history []memory.Turn) Prompt {
	var b strings.Builder

	if len(results) > 0 {
		b.WriteString("Context passages:\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.SourceTitle, strings.TrimSpace(r.Content))
		}
	} else {
		b.WriteString("Context passages: none found.\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for i := len(history) - 1; i >= 0; i-- {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", history[i].Question, history[i].Answer)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s", question)

	return Prompt{System: systemPreamble, User: b.String()}
}
