package mastery

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
)

const (
	MinQuality = 0
	MaxQuality = 5

	// PassingQuality is the lowest grade that keeps the interval growing.
	PassingQuality = 3

	secondIntervalDays = 6.0
)

var ErrInvalidQuality = errors.New("review quality out of range")

// Review is the schedule produced for one graded attempt.
type Review struct {
	Quality      int
	EaseFactor   float64
	IntervalDays float64
	NextReviewAt time.Time
}

// Schedule computes the next ease, interval and review date. totalAttempts is
// the count after the current attempt has been applied.
func Schedule(ease, interval float64, totalAttempts, quality int, now time.Time) (Review, error) {
	if quality < MinQuality || quality > MaxQuality {
		return Review{}, fmt.Errorf("%w: %d", ErrInvalidQuality, quality)
	}
	miss := float64(MaxQuality - quality)
	newEase := clampRange(ease+(0.1-miss*(0.08+miss*0.02)), personalization.MinEaseFactor, personalization.MaxEaseFactor)

	var next float64
	switch {
	case quality < PassingQuality:
		next = personalization.InitialReviewIntervalDays
	case totalAttempts <= 1:
		next = personalization.InitialReviewIntervalDays
	case totalAttempts == 2:
		next = secondIntervalDays
	default:
		next = interval * newEase
	}
	if next < personalization.InitialReviewIntervalDays {
		next = personalization.InitialReviewIntervalDays
	}

	return Review{
		Quality:      quality,
		EaseFactor:   newEase,
		IntervalDays: next,
		NextReviewAt: now.UTC().AddDate(0, 0, int(math.Ceil(next))),
	}, nil
}

// ApplyReview schedules rec from its current state and writes the result back.
func ApplyReview(rec *personalization.MasteryRecord, quality int, now time.Time) (Review, error) {
	rv, err := Schedule(rec.EaseFactor, rec.ReviewIntervalDays, rec.TotalAttempts, quality, now)
	if err != nil {
		return Review{}, err
	}
	rec.EaseFactor = rv.EaseFactor
	rec.ReviewIntervalDays = rv.IntervalDays
	next := rv.NextReviewAt
	rec.NextReviewAt = &next
	return rv, nil
}
