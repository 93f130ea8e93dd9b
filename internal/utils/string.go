package utils

import (
	"context"
)

// FindClosestString returns the candidate with the smallest Levenshtein distance to s,
// candidates further than maxDifferences are ignored.
func FindClosestString(ctx context.Context, candidates []string, s string, maxDifferences int) (closest string, distance int, found bool) {
	distance = maxDifferences + 1

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return "", 0, false
		}

		d := levenshtein([]rune(candidate), []rune(s))
		if d < distance {
			closest, distance = candidate, d
		}
	}

	if distance > maxDifferences {
		return "", 0, false
	}
	return closest, distance, true
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
