package validation

import (
	"strings"
	"unicode"
)

// Sanitizers normalize raw CSV text. The empty string stands for null and
// every sanitizer is idempotent.

// SanitizePhone keeps ASCII digits and hyphens.
func SanitizePhone(s string) string {
	return keep(s, func(r rune) bool { return isDigit(r) || r == '-' })
}

// SanitizePostalCode keeps ASCII letters and digits.
func SanitizePostalCode(s string) string {
	return keep(s, func(r rune) bool { return isDigit(r) || isLetter(r) })
}

// SanitizeHsCode keeps ASCII digits. Length is checked by the validator.
func SanitizeHsCode(s string) string {
	return keep(s, isDigit)
}

// SanitizeCountryCode trims and uppercases.
func SanitizeCountryCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func keep(s string, allowed func(rune) bool) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}
