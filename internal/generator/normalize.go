package generator

import (
	"strings"
	"unicode"
)

// normalizeText lowercases, replaces punctuation with spaces and collapses
// whitespace. Works on any script; word boundaries become single spaces so
// whole-word containment reduces to padded substring search.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// containsWord reports whether needle occurs as a whole-word span in the
// normalized haystack. Both arguments must already be normalized.
func containsWord(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// tokens splits normalized text into its words.
func tokens(s string) []string {
	return strings.Fields(s)
}
