package extract

import (
	"strings"
	"unicode"
)

// SummaryLength is the longest summary returned without truncation.
const SummaryLength = 400

// Summarize returns a short lead-in for search hits. A leading copy of the
// title is dropped. Longer bodies are cut at the first whitespace or '/' at
// or after SummaryLength-1 runes and marked with "...".
func Summarize(body, title string) string {
	title = strings.TrimSpace(title)
	if title != "" && strings.HasPrefix(body, title) {
		body = strings.TrimLeft(body[len(title):], "/. \n\r\t")
	}

	runes := []rune(body)
	if len(runes) <= SummaryLength {
		return body
	}
	for i := SummaryLength - 1; i < len(runes); i++ {
		if runes[i] == '/' || unicode.IsSpace(runes[i]) {
			return string(runes[:i]) + "..."
		}
	}
	return string(runes[:SummaryLength]) + "..."
}
