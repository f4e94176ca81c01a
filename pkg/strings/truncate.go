package strings

import (
	"strings"
)

// DefaultCellMaxLen is the width table cells are cut to in CLI output.
const DefaultCellMaxLen = 60

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// Truncate flattens s to a single line and cuts it to maxLen runes, marking a cut
// with "...". Runs of whitespace become one space. maxLen below 4 is raised to 4.
func Truncate(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Cell truncates s to DefaultCellMaxLen.
func Cell(s string) string {
	return Truncate(s, DefaultCellMaxLen)
}
