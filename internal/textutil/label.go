package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// TitleCase formats a detection label for operator-facing alert text.
// Separator characters collapse to single spaces, so "license_plate"
// becomes "License Plate". Empty input yields "Unknown".
func TitleCase(label string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range label {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	out := strings.TrimSpace(cleaned.String())
	if out == "" {
		return "Unknown"
	}
	return titleCaser.String(out)
}
