package personalization

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultProbabilityKnown   = 0.3
	DefaultProbabilityLearned = 0.1
	DefaultProbabilitySlip    = 0.1

	InitialEaseFactor         = 2.5
	MinEaseFactor             = 1.3
	MaxEaseFactor             = 2.5
	InitialReviewIntervalDays = 1.0

	// MasteredThreshold and PracticeThreshold bound the mastered and
	// needing-practice projections on probability_known.
	MasteredThreshold = 0.95
	PracticeThreshold = 0.7
)

// ErrInvalidParams is returned when a per-record BKT override is outside (0,1).
var ErrInvalidParams = errors.New("invalid knowledge tracing parameters")

// MasteryRecord is the durable BKT + review-schedule state for one
// (user, skill type, concept) tuple. ConceptID "" tracks the skill type globally.
type MasteryRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;index:idx_mastery_record_tuple,unique,priority:1" json:"user_id"`
	SkillType SkillType `gorm:"column:skill_type;type:varchar(32);not null;index:idx_mastery_record_tuple,unique,priority:2" json:"skill_type"`
	ConceptID string    `gorm:"column:concept_id;type:varchar(255);not null;index:idx_mastery_record_tuple,unique,priority:3" json:"concept_id"`

	ProbabilityKnown   float64 `gorm:"column:probability_known;not null;index" json:"probability_known"`
	ProbabilityLearned float64 `gorm:"column:probability_learned;not null" json:"probability_learned"`
	ProbabilitySlip    float64 `gorm:"column:probability_slip;not null" json:"probability_slip"`
	ProbabilityGuess   float64 `gorm:"column:probability_guess;not null" json:"probability_guess"`

	TotalAttempts   int        `gorm:"column:total_attempts;not null" json:"total_attempts"`
	CorrectAttempts int        `gorm:"column:correct_attempts;not null" json:"correct_attempts"`
	LastAttemptAt   *time.Time `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`

	EaseFactor         float64    `gorm:"column:ease_factor;not null" json:"ease_factor"`
	ReviewIntervalDays float64    `gorm:"column:review_interval_days;not null" json:"review_interval_days"`
	NextReviewAt       *time.Time `gorm:"column:next_review_at;index" json:"next_review_at,omitempty"`

	// Version guards compare-and-set updates.
	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MasteryRecord) TableName() string { return "mastery_record" }

// RecordParams optionally overrides the default BKT priors of a new record.
type RecordParams struct {
	ProbabilityKnown   *float64 `json:"probability_known,omitempty"`
	ProbabilityLearned *float64 `json:"probability_learned,omitempty"`
	ProbabilitySlip    *float64 `json:"probability_slip,omitempty"`
	ProbabilityGuess   *float64 `json:"probability_guess,omitempty"`
}

func (p RecordParams) Validate() error {
	check := func(name string, v *float64, lo, hi float64, openLo bool) error {
		if v == nil {
			return nil
		}
		if (openLo && *v <= lo) || (!openLo && *v < lo) || *v >= hi {
			return fmt.Errorf("%w: %s=%v", ErrInvalidParams, name, *v)
		}
		return nil
	}
	if err := check("probability_known", p.ProbabilityKnown, 0, 1, false); err != nil {
		return err
	}
	if err := check("probability_learned", p.ProbabilityLearned, 0, 1, false); err != nil {
		return err
	}
	if err := check("probability_slip", p.ProbabilitySlip, 0, 1, true); err != nil {
		return err
	}
	return check("probability_guess", p.ProbabilityGuess, 0, 1, true)
}

// NormalizeConceptID maps a missing concept to the skill-type-global key.
func NormalizeConceptID(conceptID string) string {
	return strings.TrimSpace(conceptID)
}

// NewMasteryRecord builds a record with default priors and the skill type's guess rate.
func NewMasteryRecord(userID uuid.UUID, skillType SkillType, conceptID string, params RecordParams, now time.Time) (*MasteryRecord, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidParams)
	}
	if !skillType.Valid() {
		return nil, fmt.Errorf("%w: unknown skill type %q", ErrInvalidParams, skillType)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	rec := &MasteryRecord{
		ID:                 uuid.New(),
		UserID:             userID,
		SkillType:          skillType,
		ConceptID:          NormalizeConceptID(conceptID),
		ProbabilityKnown:   DefaultProbabilityKnown,
		ProbabilityLearned: DefaultProbabilityLearned,
		ProbabilitySlip:    DefaultProbabilitySlip,
		ProbabilityGuess:   skillType.GuessRate(),
		EaseFactor:         InitialEaseFactor,
		ReviewIntervalDays: InitialReviewIntervalDays,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
	if p := params.ProbabilityKnown; p != nil {
		rec.ProbabilityKnown = *p
	}
	if p := params.ProbabilityLearned; p != nil {
		rec.ProbabilityLearned = *p
	}
	if p := params.ProbabilitySlip; p != nil {
		rec.ProbabilitySlip = *p
	}
	if p := params.ProbabilityGuess; p != nil {
		rec.ProbabilityGuess = *p
	}
	return rec, nil
}

// AccuracyRate is correct/total, 0 before the first attempt.
func (r *MasteryRecord) AccuracyRate() float64 {
	if r == nil || r.TotalAttempts == 0 {
		return 0
	}
	return float64(r.CorrectAttempts) / float64(r.TotalAttempts)
}

func (r *MasteryRecord) IsMastered() bool {
	return r != nil && r.ProbabilityKnown >= MasteredThreshold
}

// NeedsReview is true until the first schedule and strictly after next_review_at.
func (r *MasteryRecord) NeedsReview(now time.Time) bool {
	if r == nil || r.NextReviewAt == nil {
		return true
	}
	return now.After(*r.NextReviewAt)
}

// HoursSinceLastAttempt returns nil before the first attempt.
func (r *MasteryRecord) HoursSinceLastAttempt(now time.Time) *float64 {
	if r == nil || r.LastAttemptAt == nil {
		return nil
	}
	h := now.Sub(*r.LastAttemptAt).Hours()
	if h < 0 {
		h = 0
	}
	return &h
}
