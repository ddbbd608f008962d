package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "las": {}, "el": {}, "los": {}, "y": {}, "of": {}, "the": {},
}

// foldDiacritics strips combining marks: "Código" becomes "Codigo".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// headerTokens lowercases, folds diacritics and splits on anything that is
// not a letter or digit. Connective words are dropped.
func headerTokens(h string) []string {
	h = strings.ToLower(foldDiacritics(h))
	parts := strings.FieldsFunc(h, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := parts[:0]
	for _, p := range parts {
		if _, skip := stopWords[p]; skip {
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeHeader(h string) string {
	return strings.Join(headerTokens(h), " ")
}

// foldUpper is used for value comparisons such as region names.
func foldUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(foldDiacritics(s)))
}
