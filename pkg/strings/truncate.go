// Package strings holds text helpers shared by the chat and report layers.
package strings

import (
	"strings"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// MinTruncateLen is the minimum maxLen for Truncate: one character plus
// the ellipsis.
const MinTruncateLen = 2

// Truncate collapses every run of whitespace (including newlines) into a
// single space and cuts the result to at most maxLen runes, ending in
// Ellipsis when anything was removed. maxLen below MinTruncateLen is
// clamped.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-1]) + Ellipsis
	}
	return s
}
