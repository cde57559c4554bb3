package fetch

import "strings"

// CleanText normalizes extracted text: every whitespace run becomes a single
// space and leading or trailing whitespace is dropped.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
