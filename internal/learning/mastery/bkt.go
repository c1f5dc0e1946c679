package mastery

import (
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
)

// UpdateKnowledge runs one BKT step: the Bayesian evidence update for the
// observed outcome followed by the learning transition.
func UpdateKnowledge(pKnown, pSlip, pGuess, pLearn float64, wasCorrect bool) float64 {
	post := posterior(pKnown, pSlip, pGuess, wasCorrect)
	return clamp01(post + (1.0-post)*pLearn)
}

func posterior(pKnown, pSlip, pGuess float64, wasCorrect bool) float64 {
	var num, den float64
	if wasCorrect {
		num = pKnown * (1.0 - pSlip)
		den = num + (1.0-pKnown)*pGuess
	} else {
		num = pKnown * pSlip
		den = num + (1.0-pKnown)*(1.0-pGuess)
	}
	if den <= 0 {
		return clamp01(pKnown)
	}
	return clamp01(num / den)
}

// KnowledgeUpdate captures the estimate on either side of one attempt.
type KnowledgeUpdate struct {
	Before float64
	After  float64
}

// ApplyAttempt folds one observed outcome into rec: probability_known,
// counters and last_attempt_at. It does not touch the review schedule.
func ApplyAttempt(rec *personalization.MasteryRecord, wasCorrect bool, now time.Time) KnowledgeUpdate {
	before := rec.ProbabilityKnown
	rec.ProbabilityKnown = UpdateKnowledge(before, rec.ProbabilitySlip, rec.ProbabilityGuess, rec.ProbabilityLearned, wasCorrect)
	rec.TotalAttempts++
	if wasCorrect {
		rec.CorrectAttempts++
	}
	at := now.UTC()
	rec.LastAttemptAt = &at
	return KnowledgeUpdate{Before: before, After: rec.ProbabilityKnown}
}

func clamp01(x float64) float64 {
	return clampRange(x, 0, 1)
}

func clampRange(x, lo, hi float64) float64 {
	if x != x {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
