// Package stats provides the pure statistical primitives used when
// aggregating voting results: percentages, Wilson score confidence
// intervals, average ranks and Borda counts.
package stats

import "math"

// zScores maps supported confidence levels to their z-score. Unrecognized
// confidence values fall back to the 95% z-score.
var zScores = map[float64]float64{
	0.90: 1.645,
	0.95: 1.96,
	0.99: 2.576,
}

const defaultZ = 1.96

// Percentage returns count/total as a percentage. Returns 0 when total is
// zero. The result is unrounded, callers round for display.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// WilsonInterval computes the Wilson score confidence interval for a
// binomial proportion, returned as (lower, upper) percentages clamped to
// [0, 100]. The Wilson interval behaves well at small sample sizes and
// extreme proportions, which matters for categories with few votes.
// Returns (0, 0) when total is zero.
func WilsonInterval(successes, total int, confidence float64) (lower, upper float64) {
	if total == 0 {
		return 0, 0
	}

	z, ok := zScores[confidence]
	if !ok {
		z = defaultZ
	}

	n := float64(total)
	p := float64(successes) / n
	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := z * math.Sqrt((p*(1-p)+z*z/(4*n))/n) / denominator

	lower = math.Max(0, center-spread) * 100
	upper = math.Min(1, center+spread) * 100

	return Round2(lower), Round2(upper)
}

// AverageRank returns the mean of the given ranks rounded to two decimals.
// The second return value is false when the slice is empty, meaning no
// average is defined.
func AverageRank(ranks []int) (float64, bool) {
	if len(ranks) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range ranks {
		sum += r
	}
	return Round2(float64(sum) / float64(len(ranks))), true
}

// BordaCount scores ranked preference lists. Within each ranking the first
// preference earns len(ranking)-1 points, decreasing by one per position.
// Scores are summed per item id across all rankings.
//
// Not wired into any published aggregation mode yet, kept available for
// alternative ranked strategies.
func BordaCount(rankings [][]int) map[int]int {
	scores := make(map[int]int)
	for _, ranking := range rankings {
		for position, itemID := range ranking {
			scores[itemID] += len(ranking) - 1 - position
		}
	}
	return scores
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
