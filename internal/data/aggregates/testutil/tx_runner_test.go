package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	repotest "github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

func insertRecord(t *testing.T, dbc dbctx.Context, userID uuid.UUID) error {
	t.Helper()
	if dbc.Tx == nil {
		t.Fatalf("body ran without a transaction")
	}
	rec, err := personalization.NewMasteryRecord(userID, types.SkillTypeQuiz, "", personalization.RecordParams{}, time.Now())
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	return dbc.Tx.WithContext(dbc.Ctx).Create(rec).Error
}

func recordCount(t *testing.T, r *InjectedTxRunner, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := r.DB.Model(&types.MasteryRecord{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestInjectedTxRunnerPersistsCommittedRecord(t *testing.T) {
	r := &InjectedTxRunner{DB: repotest.SQLite(t)}
	userID := uuid.New()

	if err := r.InTx(context.Background(), func(dbc dbctx.Context) error {
		return insertRecord(t, dbc, userID)
	}); err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if n := recordCount(t, r, userID); n != 1 {
		t.Fatalf("records: want=1 got=%d", n)
	}
	if r.CommitCalls != 1 || r.RollbackCalls != 0 {
		t.Fatalf("counters: commit=%d rollback=%d", r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunnerCommitFailureDiscardsWrites(t *testing.T) {
	r := &InjectedTxRunner{DB: repotest.SQLite(t), FailCommit: ErrInjected, FailCommitTimes: 1}
	userID := uuid.New()
	body := func(dbc dbctx.Context) error { return insertRecord(t, dbc, userID) }

	if err := r.InTx(context.Background(), body); !errors.Is(err, ErrInjected) {
		t.Fatalf("first attempt: want=%v got=%v", ErrInjected, err)
	}
	if n := recordCount(t, r, userID); n != 0 {
		t.Fatalf("records after injected failure: want=0 got=%d", n)
	}
	if err := r.InTx(context.Background(), body); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if n := recordCount(t, r, userID); n != 1 {
		t.Fatalf("records after retry: want=1 got=%d", n)
	}
	if r.BeginCalls != 2 || r.RollbackCalls != 1 || r.CommitCalls != 1 {
		t.Fatalf("counters: begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunnerBeginFailureSkipsBody(t *testing.T) {
	r := &InjectedTxRunner{FailBegin: ErrInjected}
	ran := false
	err := r.InTx(context.Background(), func(dbctx.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrInjected) || ran {
		t.Fatalf("begin failure: err=%v ran=%v", err, ran)
	}
}
