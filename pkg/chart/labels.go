package chart

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ASCIIOnly folds accents ("Côte d'Ivoire" -> "Cote d'Ivoire") and drops any
// remaining non-ASCII runes, so labels render with the bundled fonts and
// survive OCR comparison.
func ASCIIOnly(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(out), " ")
}

// TitleFromStem turns a file stem like "survey_results-2023" into
// "Survey Results 2023".
func TitleFromStem(stem string) string {
	stem = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, stem)
	words := strings.Fields(stem)
	if len(words) == 0 {
		return "Pie Chart"
	}
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
