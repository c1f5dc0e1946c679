package personalization

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MasteryAttempt is the append-only ledger entry written for every recorded
// attempt. It snapshots the belief before and after the update.
type MasteryAttempt struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_attempt_user_created,priority:1" json:"user_id"`
	MasteryRecordID   uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_attempt_record_created,priority:1" json:"mastery_record_id"`
	ExerciseSessionID string    `gorm:"column:exercise_session_id;type:varchar(255);index" json:"exercise_session_id"`
	SkillType         SkillType `gorm:"column:skill_type;type:varchar(32);not null" json:"skill_type"`
	ConceptID         string    `gorm:"column:concept_id;type:varchar(255);not null" json:"concept_id"`

	DifficultyLevel        int      `gorm:"column:difficulty_level;not null" json:"difficulty_level"`
	WasCorrect             bool     `gorm:"column:was_correct;not null" json:"was_correct"`
	ResponseTimeMS         *int     `gorm:"column:response_time_ms" json:"response_time_ms,omitempty"`
	HoursSinceLastPractice *float64 `gorm:"column:hours_since_last_practice" json:"hours_since_last_practice,omitempty"`
	UserSkillLevelAtTime   *int     `gorm:"column:user_skill_level_at_time" json:"user_skill_level_at_time,omitempty"`

	ProbabilityKnownBefore  float64 `gorm:"column:probability_known_before;not null" json:"probability_known_before"`
	ProbabilityKnownAfter   float64 `gorm:"column:probability_known_after;not null" json:"probability_known_after"`
	Quality                 int     `gorm:"column:quality;not null" json:"quality"`
	EaseFactorAfter         float64 `gorm:"column:ease_factor_after;not null" json:"ease_factor_after"`
	ReviewIntervalDaysAfter float64 `gorm:"column:review_interval_days_after;not null" json:"review_interval_days_after"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_mastery_attempt_user_created,priority:2;index:idx_mastery_attempt_record_created,priority:2" json:"created_at"`
}

func (MasteryAttempt) TableName() string { return "mastery_attempt" }
