package store

import (
	"strings"
	"unicode"
)

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// snippetAround cuts a window of roughly width runes centred on the first
// case-insensitive match of term.
func snippetAround(body, term string, width int) string {
	runes := []rune(body)
	if len(runes) <= width {
		return strings.TrimSpace(body)
	}
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}
	needle := []rune(strings.ToLower(term))

	at := indexRunes(lowered, needle)
	if at < 0 {
		return strings.TrimSpace(string(runes[:width])) + "…"
	}
	start := at - width/2
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-width)
	}

	snippet := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet += "…"
	}
	return snippet
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
