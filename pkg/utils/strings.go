package utils

import (
	"strconv"
	"strings"
	"unicode"
)

// Truncate shortens s to at most max runes, appending "..." when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// NormalizeToken lowercases and trims surrounding punctuation from a token.
func NormalizeToken(s string) string {
	return strings.Trim(strings.ToLower(s), ".,;:!?\"'()[]{}")
}

// CommaInt renders n with thousands separators, 1250 -> "1,250".
func CommaInt(n int) string {
	s := strconv.Itoa(n)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return sign + strings.Join(parts, ",")
}

// TitleWords uppercases the first letter of every alphabetic run and
// lowercases the rest, so "forest_plot" becomes "Forest_Plot".
func TitleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}
