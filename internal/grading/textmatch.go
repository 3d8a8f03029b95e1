package grading

import "strings"

// normalize prepares free-text answers for comparison: trimmed and
// case-folded, with internal whitespace runs collapsed to single spaces.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
