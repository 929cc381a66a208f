package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reTrailingDot = regexp.MustCompile(`\.0$`)
)

var missingValues = map[string]struct{}{
	"":     {},
	"nan":  {},
	"<na>": {},
	"none": {},
	"null": {},
}

// Fold composes accents to NFC and turns non-breaking spaces into plain ones.
// NFKC is avoided because it rewrites the micro sign into a Greek mu.
func Fold(input string) string {
	s := norm.NFC.String(input)
	return strings.ReplaceAll(s, "\u00a0", " ")
}

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// IsMissing reports whether a raw cell stands for an absent value.
func IsMissing(value string) bool {
	_, ok := missingValues[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// Unify maps every spelling of a missing value to the empty string.
func Unify(value string) string {
	if IsMissing(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

// NormalizePeticioID drops the float artifact left by spreadsheet exports and
// every non alphanumeric rune.
func NormalizePeticioID(input string) string {
	s := reTrailingDot.ReplaceAllString(strings.TrimSpace(input), "")
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}
