package section

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	escapedUnicode = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	// Go regexp has no lookbehind, so the leading boundary is captured.
	bareUnicode = regexp.MustCompile(`(?i)(^|[^a-z0-9])u([0-9a-f]{4})`)
	bareHint    = regexp.MustCompile(`(?i)(^|[^a-z0-9])u00[0-9a-f]{2}`)
)

// DecodeLegacyEscapes repairs content saved by older hosts that stored
// markup as literal \u003c sequences, or with the backslashes stripped.
func DecodeLegacyEscapes(value string) string {
	if value == "" || !strings.Contains(strings.ToLower(value), "u00") {
		return value
	}
	decoded := escapedUnicode.ReplaceAllStringFunc(value, func(m string) string {
		return decodeCodePoint(m[2:], m)
	})
	if !strings.Contains(decoded, "<") && bareHint.MatchString(decoded) {
		decoded = bareUnicode.ReplaceAllStringFunc(decoded, func(m string) string {
			sub := bareUnicode.FindStringSubmatch(m)
			return sub[1] + decodeCodePoint(sub[2], m[len(sub[1]):])
		})
	}
	return decoded
}

func decodeCodePoint(hex, fallback string) string {
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return string(rune(n))
}

// NormalizeStored normalizes a section coming from host storage,
// including legacy escape repair.
func NormalizeStored(v any) (Section, bool) {
	s, ok := Normalize(v)
	if !ok {
		return s, false
	}
	s.Content = DecodeLegacyEscapes(s.Content)
	s.CSS = DecodeLegacyEscapes(s.CSS)
	s.JS = DecodeLegacyEscapes(s.JS)
	return s, true
}
