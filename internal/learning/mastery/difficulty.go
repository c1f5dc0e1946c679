package mastery

import "github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"

// difficultyBuckets are half-open upper bounds on mean probability_known.
var difficultyBuckets = [...]struct {
	upper float64
	level int
}{
	{0.30, 1},
	{0.40, 2},
	{0.50, 3},
	{0.60, 4},
	{0.70, 5},
	{0.75, 6},
	{0.80, 7},
	{0.85, 8},
	{0.92, 9},
}

// RecommendDifficulty maps the mean estimate over n records to a level in 1..10.
func RecommendDifficulty(meanKnown float64, n int) int {
	if n <= 0 {
		return MinDifficulty
	}
	for _, b := range difficultyBuckets {
		if meanKnown < b.upper {
			return b.level
		}
	}
	return MaxDifficulty
}

// MeanKnown averages probability_known over recs.
func MeanKnown(recs []*personalization.MasteryRecord) (float64, int) {
	if len(recs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, r := range recs {
		sum += r.ProbabilityKnown
	}
	return sum / float64(len(recs)), len(recs)
}
