// internal/utils/utils.go
package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// FoldAccents lowercases s and strips combining diacritics so that
// "Emissão" and "emissao" compare equal.
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// CollapseWhitespace trims s and replaces every whitespace run
// (including non-breaking spaces) with a single space.
func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// TruncateString truncates a string to a maximum length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ParseContentType extracts the media type from a Content-Type header
func ParseContentType(contentType string) string {
	parts := strings.Split(contentType, ";")
	if len(parts) > 0 {
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	return contentType
}

// IsTextContent checks if a content type represents a parseable text document
func IsTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}

	textTypes := []string{
		"text/html",
		"text/plain",
		"application/xhtml+xml",
		"application/xml",
	}

	ct := ParseContentType(contentType)
	for _, textType := range textTypes {
		if ct == textType {
			return true
		}
	}

	return strings.HasPrefix(ct, "text/")
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

