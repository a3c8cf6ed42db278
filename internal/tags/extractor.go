// Package tags extracts hashtag tokens from free text.
package tags

import (
	"regexp"
	"strings"
)

// Tokens are unicode letters, digits and underscore after a '#'.
var hashtagPattern = regexp.MustCompile(`#([\p{L}0-9_]+)`)

// Extract returns the lower-cased hashtag tokens found in text, in order
// of appearance. Duplicates are kept; callers normalize as needed.
func Extract(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}
