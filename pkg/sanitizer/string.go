package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims s and collapses every run of whitespace to one space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}
	return result.String()
}

// NormalizeID strips surrounding whitespace. Inner characters are kept as-is
// since ids are opaque.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
