package service

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	htmlEntityPattern = regexp.MustCompile(`(?i)&[a-z]+;`)
)

// sanitizeText strips HTML tags and entities, trims whitespace, and clamps
// the result to maxLength runes.
func sanitizeText(input string, maxLength int) string {
	cleaned := htmlTagPattern.ReplaceAllString(input, "")
	cleaned = htmlEntityPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if runes := []rune(cleaned); len(runes) > maxLength {
		cleaned = string(runes[:maxLength])
	}

	return cleaned
}
