package repl

import "strings"

// fuzzyScore ranks candidate against typed using a subsequence match:
// every rune of typed must appear in candidate in order (case
// insensitive). Returns -1 when typed is not a subsequence of
// candidate; otherwise a lower score is a better match, rewarding
// prefix matches and tight clustering of the matched runes.
func fuzzyScore(candidate, typed string) int {
	if typed == "" {
		return 0
	}
	c := strings.ToLower(candidate)
	t := strings.ToLower(typed)

	ci := 0
	firstMatch := -1
	lastMatch := -1
	for _, r := range t {
		idx := strings.IndexRune(c[ci:], r)
		if idx < 0 {
			return -1
		}
		pos := ci + idx
		if firstMatch < 0 {
			firstMatch = pos
		}
		lastMatch = pos
		ci = pos + len(string(r))
	}

	span := lastMatch - firstMatch
	score := firstMatch*2 + span
	if firstMatch > 0 {
		score += len(c)
	}
	return score
}

// fuzzyFilter keeps and orders candidates that fuzzy-match typed, best
// match first; candidates with no match are dropped.
func fuzzyFilter(candidates []string, typed string) []string {
	type scored struct {
		s     string
		score int
	}
	var matches []scored
	for _, c := range candidates {
		if score := fuzzyScore(c, typed); score >= 0 {
			matches = append(matches, scored{c, score})
		}
	}
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].score > matches[j].score; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.s
	}
	return out
}
