package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

func TestCASGuardCompareAndSet(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	rec := testutil.SeedMasteryRecord(t, ctx, db, uuid.New(), types.SkillTypeQuiz, "")
	guard := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: ctx}

	if err := guard.CompareAndSet(dbc, rec.TableName(), rec.ID, 0, map[string]any{"probability_known": 0.5}); err != nil {
		t.Fatalf("first CAS: %v", err)
	}
	err := guard.CompareAndSet(dbc, rec.TableName(), rec.ID, 0, map[string]any{"probability_known": 0.9})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("stale CAS: want conflict got=%v", err)
	}

	var got types.MasteryRecord
	if err := db.Where("id = ?", rec.ID).Take(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Version != 1 || got.ProbabilityKnown != 0.5 {
		t.Fatalf("after CAS: want version=1 pk=0.5 got version=%d pk=%v", got.Version, got.ProbabilityKnown)
	}
}

func TestCASGuardCompareAndSetInsideTx(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	rec := testutil.SeedMasteryRecord(t, ctx, db, uuid.New(), types.SkillTypeQuiz, "")
	guard := NewCASGuard(nil)

	tx := db.Begin()
	if err := guard.CompareAndSet(dbctx.Context{Ctx: ctx, Tx: tx}, rec.TableName(), rec.ID, 0, map[string]any{"total_attempts": 4}); err != nil {
		tx.Rollback()
		t.Fatalf("tx CAS: %v", err)
	}
	tx.Rollback()

	var got types.MasteryRecord
	if err := db.Where("id = ?", rec.ID).Take(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Version != 0 || got.TotalAttempts != 0 {
		t.Fatalf("rolled back CAS leaked: version=%d total=%d", got.Version, got.TotalAttempts)
	}
}

func TestCASGuardValidation(t *testing.T) {
	guard := NewCASGuard(nil)
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := guard.CompareAndSet(dbc, "mastery_record", uuid.New(), 0, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("nil db: want validation got=%v", err)
	}

	db := testutil.SQLite(t)
	guard = NewCASGuard(db)
	if err := guard.CompareAndSet(dbc, "", uuid.New(), 0, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty table: want validation got=%v", err)
	}
	if err := guard.CompareAndSet(dbc, "mastery_record", uuid.New(), -1, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative version: want validation got=%v", err)
	}
}
