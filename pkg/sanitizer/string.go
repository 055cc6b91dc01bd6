package sanitizer

import (
	"strings"
	"unicode/utf8"
)

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeName(name string) string {
	return CollapseSpace(name)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNote collapses whitespace in free text and cuts it to at most
// maxRunes runes. A maxRunes of zero or less keeps the whole text.
func NormalizeNote(note string, maxRunes int) string {
	note = CollapseSpace(note)
	if maxRunes <= 0 || utf8.RuneCountInString(note) <= maxRunes {
		return note
	}
	runes := []rune(note)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
