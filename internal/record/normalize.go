package record

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace. Workspaces
// and device names are matched on their normalized form.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
