package util

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ToValidUTF8 ensures a string is valid UTF-8. Invalid input is decoded
// as Latin-1, which is what legacy CRM exports of contact names tend to
// be, so characters like ä or é survive instead of turning into U+FFFD.
func ToValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
		return decoded
	}
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

// CleanCell makes backend text safe for a single table line: valid UTF-8,
// control characters and newlines folded into single spaces.
func CleanCell(s string) string {
	s = ToValidUTF8(s)
	if !strings.ContainsFunc(s, unicode.IsControl) {
		return s
	}
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsControl(r) || r == ' '
	}), " ")
}
