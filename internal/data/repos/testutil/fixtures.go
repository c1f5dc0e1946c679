package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
)

// RecordOpt tweaks a seeded record before insert.
type RecordOpt func(*types.MasteryRecord)

func WithKnown(p float64) RecordOpt {
	return func(r *types.MasteryRecord) { r.ProbabilityKnown = p }
}

func WithNextReview(at time.Time) RecordOpt {
	return func(r *types.MasteryRecord) {
		at = at.UTC()
		r.NextReviewAt = &at
	}
}

func WithAttempts(total, correct int) RecordOpt {
	return func(r *types.MasteryRecord) {
		r.TotalAttempts = total
		r.CorrectAttempts = correct
	}
}

func SeedMasteryRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, st types.SkillType, conceptID string, opts ...RecordOpt) *types.MasteryRecord {
	tb.Helper()
	rec, err := personalization.NewMasteryRecord(userID, st, conceptID, personalization.RecordParams{}, time.Now())
	if err != nil {
		tb.Fatalf("new mastery record: %v", err)
	}
	for _, opt := range opts {
		opt(rec)
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed mastery record: %v", err)
	}
	return rec
}

func SeedMasteryAttempt(tb testing.TB, ctx context.Context, tx *gorm.DB, rec *types.MasteryRecord, correct bool, at time.Time) *types.MasteryAttempt {
	tb.Helper()
	a := &types.MasteryAttempt{
		ID:                      uuid.New(),
		UserID:                  rec.UserID,
		MasteryRecordID:         rec.ID,
		ExerciseSessionID:       "session",
		SkillType:               rec.SkillType,
		ConceptID:               rec.ConceptID,
		DifficultyLevel:         5,
		WasCorrect:              correct,
		ProbabilityKnownBefore:  rec.ProbabilityKnown,
		ProbabilityKnownAfter:   rec.ProbabilityKnown,
		Quality:                 3,
		EaseFactorAfter:         rec.EaseFactor,
		ReviewIntervalDaysAfter: rec.ReviewIntervalDays,
		CreatedAt:               at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed mastery attempt: %v", err)
	}
	return a
}
