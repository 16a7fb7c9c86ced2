package utils

import "strings"

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
// Prompt budgets are counted in tokens, so this is a coarse guard against
// pathological titles and URLs, not an exact limit.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
