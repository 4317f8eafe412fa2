package advisory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// extractJSON pulls the JSON object out of a completion that may wrap
// it in prose or a code fence: everything from the first '{' to the
// last '}'.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

// promoWords flags language that reads as solicitation. AI comments
// containing any of these are discarded in favor of the template set.
var promoWords = []string{
	"check my", "dm me", "we offer", "our service", "we help", "website:", "link",
}

// IsPromotional reports whether the comment contains promotional
// language that would read as spam.
func IsPromotional(comment string) bool {
	lower := strings.ToLower(comment)
	for _, w := range promoWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// maxCommentLen caps comment length in characters to stay inside
// Instagram norms.
const maxCommentLen = 200

// ClampComment truncates a comment to the maximum allowed length. The
// cut lands on a rune boundary so emoji never get split into invalid
// UTF-8.
func ClampComment(comment string) string {
	if utf8.RuneCountInString(comment) <= maxCommentLen {
		return comment
	}
	runes := []rune(comment)
	return string(runes[:maxCommentLen])
}
