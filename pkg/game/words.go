package game

import (
	"math/rand"
	"strings"
)

// uniqueWords trims words and drops blanks and case-insensitive duplicates,
// keeping the first spelling seen.
func uniqueWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	unique := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, w)
	}
	return unique
}

// sample returns up to n words drawn without replacement.
func sample(r *rand.Rand, words []string, n int) []string {
	if n > len(words) {
		n = len(words)
	}
	if n < 0 {
		n = 0
	}
	picked := make([]string, 0, n)
	for _, i := range r.Perm(len(words))[:n] {
		picked = append(picked, words[i])
	}
	return picked
}

// drawExcluding picks uniformly among the words that are not exclude.
// The bank holds at least two distinct words, so there is always a candidate.
func drawExcluding(r *rand.Rand, words []string, exclude string) string {
	candidates := make([]string, 0, len(words))
	for _, w := range words {
		if !strings.EqualFold(w, exclude) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return exclude
	}
	return candidates[r.Intn(len(candidates))]
}
