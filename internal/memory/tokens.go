package memory

import "unicode/utf8"

// estimateTokens gives a rough token count: rune count divided by two, a
// conservative figure for both English (~4 chars/token) and CJK
// (~1.5 chars/token) text.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

// TurnTokens estimates the context window cost of one stored turn.
func TurnTokens(t Turn) int {
	return estimateTokens(t.Question) + estimateTokens(t.Answer)
}

// trimToBudget keeps the newest turns whose combined estimate fits
// maxTokens. turns must be ordered newest first; the kept prefix keeps
// that order. Whole turns only: the first turn that would overflow the
// budget is dropped together with everything older than it.
func trimToBudget(turns []Turn, maxTokens int) []Turn {
	if maxTokens <= 0 {
		return []Turn{}
	}
	remaining := maxTokens
	for i, t := range turns {
		cost := TurnTokens(t)
		if cost > remaining {
			return turns[:i]
		}
		remaining -= cost
	}
	return turns
}
