package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos"
	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
	"github.com/yungbote/neurobridge-mastery/internal/learning/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

const opRecordAttempt = "Learning.Mastery.RecordAttempt"

type MasteryAggregateDeps struct {
	Base BaseDeps

	Records  repos.MasteryRecordRepo
	Attempts repos.MasteryAttemptRepo

	// Now defaults to time.Now.
	Now func() time.Time
}

type masteryAggregate struct {
	deps MasteryAggregateDeps
}

func NewMasteryAggregate(deps MasteryAggregateDeps) domainagg.MasteryAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &masteryAggregate{deps: deps}
}

func (a *masteryAggregate) Contract() domainagg.Contract {
	return domainagg.MasteryAggregateContract
}

func (a *masteryAggregate) RecordAttempt(ctx context.Context, in domainagg.RecordAttemptInput) (domainagg.RecordAttemptResult, error) {
	var out domainagg.RecordAttemptResult

	in, quality, meta, err := normalizeAttempt(in)
	if err != nil {
		return out, err
	}
	now := in.At
	if now.IsZero() {
		now = a.deps.Now()
	}
	// Postgres keeps microseconds; truncating keeps reads equal to what was written.
	now = now.UTC().Truncate(time.Microsecond)

	retries, err := executeWriteRetry(ctx, a.deps.Base, opRecordAttempt, func(dbc dbctx.Context) error {
		res, err := a.recordAttemptTx(dbc, in, quality, meta, now)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return domainagg.RecordAttemptResult{}, err
	}
	out.Retries = retries
	out.Recorded = now
	return out, nil
}

func (a *masteryAggregate) recordAttemptTx(dbc dbctx.Context, in domainagg.RecordAttemptInput, quality int, meta datatypes.JSON, now time.Time) (domainagg.RecordAttemptResult, error) {
	var out domainagg.RecordAttemptResult

	fresh, err := personalization.NewMasteryRecord(in.UserID, in.SkillType, in.ConceptID, in.Params, now)
	if err != nil {
		return out, ValidationError(err.Error())
	}
	created, err := a.deps.Records.EnsureExists(dbc, fresh)
	if err != nil {
		return out, err
	}
	rec, err := a.deps.Records.GetForUpdate(dbc, in.UserID, in.SkillType, in.ConceptID)
	if err != nil {
		return out, err
	}

	hours := rec.HoursSinceLastAttempt(now)
	expected := rec.Version
	knowledge := mastery.ApplyAttempt(rec, in.WasCorrect, now)
	review, err := mastery.ApplyReview(rec, quality, now)
	if err != nil {
		return out, ValidationError(err.Error())
	}
	rec.UpdatedAt = now

	err = a.deps.Base.CASGuard.CompareAndSet(dbc, rec.TableName(), rec.ID, expected, map[string]any{
		"probability_known":    rec.ProbabilityKnown,
		"total_attempts":       rec.TotalAttempts,
		"correct_attempts":     rec.CorrectAttempts,
		"last_attempt_at":      rec.LastAttemptAt,
		"ease_factor":          rec.EaseFactor,
		"review_interval_days": rec.ReviewIntervalDays,
		"next_review_at":       rec.NextReviewAt,
		"updated_at":           rec.UpdatedAt,
	})
	if err != nil {
		return out, err
	}
	rec.Version = expected + 1

	entry := &personalization.MasteryAttempt{
		ID:                      uuid.New(),
		UserID:                  rec.UserID,
		MasteryRecordID:         rec.ID,
		ExerciseSessionID:       in.ExerciseSessionID,
		SkillType:               rec.SkillType,
		ConceptID:               rec.ConceptID,
		DifficultyLevel:         in.DifficultyLevel,
		WasCorrect:              in.WasCorrect,
		ResponseTimeMS:          in.ResponseTimeMS,
		HoursSinceLastPractice:  hours,
		UserSkillLevelAtTime:    in.UserSkillLevel,
		ProbabilityKnownBefore:  knowledge.Before,
		ProbabilityKnownAfter:   knowledge.After,
		Quality:                 review.Quality,
		EaseFactorAfter:         review.EaseFactor,
		ReviewIntervalDaysAfter: review.IntervalDays,
		Metadata:                meta,
		CreatedAt:               now,
	}
	if err := a.deps.Attempts.Create(dbc, entry); err != nil {
		return out, err
	}

	out.Record = *rec
	out.Attempt = *entry
	out.Created = created
	return out, nil
}

// normalizeAttempt rejects bad input before any transaction is opened.
func normalizeAttempt(in domainagg.RecordAttemptInput) (domainagg.RecordAttemptInput, int, datatypes.JSON, error) {
	if in.UserID == uuid.Nil {
		return in, 0, nil, domainagg.Validation(opRecordAttempt, "user_id is required")
	}
	if !in.SkillType.Valid() {
		return in, 0, nil, domainagg.Validation(opRecordAttempt, "unknown skill_type %q", in.SkillType)
	}
	in.ConceptID = personalization.NormalizeConceptID(in.ConceptID)
	if in.ResponseTimeMS != nil && *in.ResponseTimeMS < 0 {
		return in, 0, nil, domainagg.Validation(opRecordAttempt, "response_time_ms must be >= 0")
	}
	if in.UserSkillLevel != nil && (*in.UserSkillLevel < mastery.MinDifficulty || *in.UserSkillLevel > mastery.MaxDifficulty) {
		return in, 0, nil, domainagg.Validation(opRecordAttempt, "user_skill_level must be in [%d,%d]", mastery.MinDifficulty, mastery.MaxDifficulty)
	}
	if err := in.Params.Validate(); err != nil {
		return in, 0, nil, domainagg.NewError(domainagg.CodeValidation, opRecordAttempt, err.Error(), err)
	}
	quality, err := mastery.QualityFor(in.WasCorrect, in.DifficultyLevel)
	if err != nil {
		return in, 0, nil, domainagg.NewError(domainagg.CodeValidation, opRecordAttempt, err.Error(), err)
	}
	var meta datatypes.JSON
	if len(in.Metadata) > 0 {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return in, 0, nil, domainagg.NewError(domainagg.CodeValidation, opRecordAttempt, "metadata is not JSON encodable", err)
		}
		meta = datatypes.JSON(b)
	}
	return in, quality, meta, nil
}
