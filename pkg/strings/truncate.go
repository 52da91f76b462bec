// Package strings holds the text helpers shared by the table output and the
// hook error messages.
package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the width of description and error columns in
// table output.
const DefaultDescriptionMaxLen = 60

// MinTruncateLen leaves room for one character plus "...".
const MinTruncateLen = 4

const ellipsis = "..."

// SingleLine collapses every run of whitespace, newlines included, into a
// single space and trims the ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateDescription returns s on a single line, cut to maxLen runes with a
// trailing "..." when it is longer. maxLen is clamped to MinTruncateLen.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}
	runes := []rune(SingleLine(s))
	if len(runes) > maxLen {
		return string(runes[:maxLen-len(ellipsis)]) + ellipsis
	}
	return string(runes)
}

// TruncateTail is TruncateDescription keeping the end of s instead. Command
// output usually ends with the interesting line.
func TruncateTail(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}
	runes := []rune(SingleLine(s))
	if len(runes) > maxLen {
		return ellipsis + string(runes[len(runes)-maxLen+len(ellipsis):])
	}
	return string(runes)
}
