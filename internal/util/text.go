package util

import (
	"strings"
	"unicode"
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// ToSnakeCase turns a display label ("IP Address", "ipAddress") into a
// lower snake case identifier ("ip_address"). Runs of separators collapse
// into a single underscore, so the result never contains "__".
func ToSnakeCase(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 4)

	pendingSep := false
	var prev rune
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
		prev = r
	}
	return b.String()
}
