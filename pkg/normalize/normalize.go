// Package normalize canonicalizes the free-text fields of monitoring exports
// so that labels coming from different sources compare equal.
package normalize

import (
	"strings"
	"unicode"
)

// String trims s, uppercases it, drops every character outside [A-Z0-9 ]
// and collapses whitespace runs into a single space. String is idempotent.
func String(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		if isKept(r) {
			b.WriteRune(r)
		}
	}

	// Only plain spaces survive the filter, tabs and newlines are dropped
	// with the other symbols, so Fields splits on ' ' runs here.
	return strings.Join(strings.Fields(b.String()), " ")
}

// Alnum keeps only [A-Z0-9] of the uppercased input.
func Alnum(s string) string {
	s = strings.ToUpper(s)

	return strings.Map(func(r rune) rune {
		if r != ' ' && isKept(r) {
			return r
		}

		return -1
	}, s)
}

func isKept(r rune) bool {
	switch {
	case r == ' ':
		return true
	case r > unicode.MaxASCII:
		return false
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}

	return false
}
