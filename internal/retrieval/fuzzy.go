package retrieval

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// fuzzyWeight caps fuzzy scores below any exact hit
	fuzzyWeight = 0.6
	// minFuzzyScore is the lowest fuzzy score kept as a candidate
	minFuzzyScore = 0.25
)

// allowedEdits is the typo budget for a name token of the given rune length
func allowedEdits(n int) int {
	switch {
	case n >= 8:
		return 2
	case n >= 4:
		return 1
	default:
		return 0
	}
}

// tokenSimilarity returns 1 - distance/len when tok is within the edit budget of nameTok
func tokenSimilarity(nameTok, tok string) (float64, bool) {
	if nameTok == tok {
		return 1, true
	}
	n := utf8.RuneCountInString(nameTok)
	budget := allowedEdits(n)
	if budget == 0 {
		return 0, false
	}
	m := utf8.RuneCountInString(tok)
	if m-n > budget || n-m > budget {
		return 0, false
	}
	dist := levenshtein.ComputeDistance(nameTok, tok)
	if dist > budget {
		return 0, false
	}
	longest := n
	if m > longest {
		longest = m
	}
	return 1 - float64(dist)/float64(longest), true
}

// fuzzyScore matches every name token against its best text token
func fuzzyScore(nameTokens, textTokens []string) float64 {
	if len(nameTokens) == 0 {
		return 0
	}
	matched := 0
	total := 0.0
	for _, nt := range nameTokens {
		best := 0.0
		found := false
		for _, tt := range textTokens {
			if sim, ok := tokenSimilarity(nt, tt); ok && sim > best {
				best = sim
				found = true
			}
		}
		if found {
			matched++
			total += best
		}
	}
	if matched == 0 {
		return 0
	}
	mean := total / float64(matched)
	return fuzzyWeight * float64(matched) / float64(len(nameTokens)) * mean
}
