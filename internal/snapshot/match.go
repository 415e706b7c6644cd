package snapshot

import (
	"math"
	"strings"
	"unicode"
)

// DefaultMatchThreshold is the similarity score at or above which a
// candidate name counts as a match.
const DefaultMatchThreshold = 80

// Match returns the candidate closest to name by token-set similarity
// (0..100) and whether its score meets the threshold. Ties keep the
// earlier candidate.
func Match(name string, names []string, threshold int) (string, int, bool) {
	best := ""
	bestScore := -1
	for _, candidate := range names {
		if score := tokenSetRatio(name, candidate); score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < 0 {
		return "", 0, false
	}
	return best, bestScore, bestScore >= threshold
}

// tokenSetRatio scores two names by the Dice coefficient over their
// token sets: 100 * 2|A∩B| / (|A|+|B|). Identical sets score 100
// regardless of token order or repetition.
func tokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return int(math.Round(200 * float64(inter) / float64(len(ta)+len(tb))))
}

// tokenSet lowercases a name and splits it on non-alphanumeric runs.
// Apostrophes are dropped rather than split so "St. Mary's" and
// "ST MARYS" produce the same tokens.
func tokenSet(s string) map[string]bool {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’':
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)

	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
