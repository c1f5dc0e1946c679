package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
)

var MasteryAggregateContract = Contract{
	Name:             "Learning.MasteryAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the per-attempt update of a mastery record (knowledge estimate, counters, review " +
		"schedule) together with its attempt ledger entry in one write boundary.",
}

// MasteryAggregate owns mastery-record writes.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeConflict, CodeRetryable, CodeInternal.
type MasteryAggregate interface {
	Aggregate

	// RecordAttempt atomically updates the (user, skill type, concept) record
	// and appends the matching ledger entry.
	RecordAttempt(ctx context.Context, in RecordAttemptInput) (RecordAttemptResult, error)
}

type RecordAttemptInput struct {
	UserID            uuid.UUID
	SkillType         personalization.SkillType
	ConceptID         string
	ExerciseSessionID string
	WasCorrect        bool
	DifficultyLevel   int
	ResponseTimeMS    *int
	UserSkillLevel    *int
	Metadata          map[string]any
	// Params only apply when the record does not exist yet.
	Params personalization.RecordParams
	// At overrides the server clock; zero means now.
	At time.Time
}

type RecordAttemptResult struct {
	Record   personalization.MasteryRecord
	Attempt  personalization.MasteryAttempt
	Created  bool
	Retries  int
	Recorded time.Time
}
