package retrieval

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases with Turkish rules and folds diacritics, so that
// "DÖNER", "döner" and "doner" compare equal.
func Normalize(s string) string {
	lower := cases.Lower(language.Turkish).String(s)

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, lower)
	if err != nil {
		folded = lower
	}

	return strings.Map(func(r rune) rune {
		if r == 'ı' {
			return 'i'
		}
		return r
	}, folded)
}

// Tokenize normalizes s and splits it on anything that is not a letter or digit
func Tokenize(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsSequence reports whether needle appears contiguously in haystack
func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

// ContainsPhrase reports whether phrase appears in text after normalization
func ContainsPhrase(text, phrase string) bool {
	return containsSequence(Tokenize(text), Tokenize(phrase))
}
