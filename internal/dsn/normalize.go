package dsn

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds text into the canonical serial alphabet: NFKC width folding,
// upper case, whitespace collapsed to single spaces, and every rune outside
// [A-Z0-9 _-] removed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	folded := strings.ToUpper(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case isSerialRune(r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSerialRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_':
		return true
	default:
		return false
	}
}

// Compact removes separators from normalized text
func Compact(normalized string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		default:
			return r
		}
	}, normalized)
}
