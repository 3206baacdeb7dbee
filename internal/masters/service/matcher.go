package service

import (
	"strings"

	"github.com/gosimple/slug"
)

// Normalize collapses a free-text name to a comparable key: lowercase,
// accents stripped, punctuation folded to single dashes. Spreadsheet exports
// spell the same recipe a dozen ways ("Concha Vainilla", "CONCHA  vainilla ");
// all of them must land on the same key.
func Normalize(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

const (
	containsMinLen = 4
	fuzzyThreshold = 0.70
)

type candidate struct {
	key   string
	index int
}

type match struct {
	index int
	score float64
}

// matchExact returns the candidate whose key equals the query key.
func matchExact(key string, candidates []candidate) (match, bool) {
	for _, c := range candidates {
		if c.key == key {
			return match{index: c.index, score: 1.0}, true
		}
	}
	return match{}, false
}

// matchContains returns the longest candidate key contained in the query,
// or containing it. Short keys are skipped so "pan" does not swallow half
// the catalog.
func matchContains(key string, candidates []candidate) (match, bool) {
	best := match{index: -1}
	bestLen := 0
	for _, c := range candidates {
		if len(c.key) < containsMinLen || len(key) < containsMinLen {
			continue
		}
		if strings.Contains(key, c.key) || strings.Contains(c.key, key) {
			if len(c.key) > bestLen {
				bestLen = len(c.key)
				shorter, longer := len(c.key), len(key)
				if shorter > longer {
					shorter, longer = longer, shorter
				}
				best = match{index: c.index, score: float64(shorter) / float64(longer)}
			}
		}
	}
	return best, best.index >= 0
}

// matchFuzzy returns the candidate with the highest normalized edit-distance
// similarity at or above fuzzyThreshold.
func matchFuzzy(key string, candidates []candidate) (match, bool) {
	best := match{index: -1}
	for _, c := range candidates {
		score := similarity(key, c.key)
		if score >= fuzzyThreshold && score > best.score {
			best = match{index: c.index, score: score}
		}
	}
	return best, best.index >= 0
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
