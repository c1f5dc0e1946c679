package aggregates_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/data/aggregates"
	aggtest "github.com/yungbote/neurobridge-mastery/internal/data/aggregates/testutil"
	"github.com/yungbote/neurobridge-mastery/internal/data/repos"
	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

type fixture struct {
	db       *gorm.DB
	records  repos.MasteryRecordRepo
	attempts repos.MasteryAttemptRepo
	hooks    *aggtest.HooksRecorder
}

func newFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	log := testutil.Logger(t)
	return fixture{
		db:       db,
		records:  repos.NewMasteryRecordRepo(db, log),
		attempts: repos.NewMasteryAttemptRepo(db, log),
		hooks:    &aggtest.HooksRecorder{},
	}
}

func (f fixture) aggregate(t *testing.T, runner aggregates.TxRunner, attempts repos.MasteryAttemptRepo, now func() time.Time) domainagg.MasteryAggregate {
	t.Helper()
	if attempts == nil {
		attempts = f.attempts
	}
	return aggregates.NewMasteryAggregate(aggregates.MasteryAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     f.db,
			Log:    testutil.Logger(t),
			Runner: runner,
			Hooks:  f.hooks,
			Retry:  &aggregates.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		},
		Records:  f.records,
		Attempts: attempts,
		Now:      now,
	})
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func (f fixture) countAttempts(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&types.MasteryAttempt{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	return n
}

func TestRecordAttemptFirstCorrectNamesFaces(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	agg := f.aggregate(t, nil, nil, fixedClock(now))

	userID := uuid.New()
	res, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
		UserID:            userID,
		SkillType:         types.SkillTypeNamesFaces,
		ExerciseSessionID: "s-1",
		WasCorrect:        true,
		DifficultyLevel:   9,
		Metadata:          map[string]any{"source": "drill"},
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	rec := res.Record
	if !res.Created {
		t.Fatalf("expected record to be created")
	}
	if math.Abs(rec.ProbabilityKnown-0.748) > 1e-9 {
		t.Fatalf("probability_known: want=0.748 got=%v", rec.ProbabilityKnown)
	}
	if rec.TotalAttempts != 1 || rec.CorrectAttempts != 1 {
		t.Fatalf("counters: want=1/1 got=%d/%d", rec.TotalAttempts, rec.CorrectAttempts)
	}
	if rec.EaseFactor != 2.5 || rec.ReviewIntervalDays != 1.0 {
		t.Fatalf("schedule: ease=%v interval=%v", rec.EaseFactor, rec.ReviewIntervalDays)
	}
	if rec.NextReviewAt == nil || !rec.NextReviewAt.Equal(now.AddDate(0, 0, 1)) {
		t.Fatalf("next_review_at: want=%v got=%v", now.AddDate(0, 0, 1), rec.NextReviewAt)
	}
	if rec.Version != 1 {
		t.Fatalf("version: want=1 got=%d", rec.Version)
	}

	a := res.Attempt
	if a.Quality != 5 || a.ProbabilityKnownBefore != 0.3 || a.HoursSinceLastPractice != nil {
		t.Fatalf("ledger: quality=%d before=%v hours=%v", a.Quality, a.ProbabilityKnownBefore, a.HoursSinceLastPractice)
	}
	if a.MasteryRecordID != rec.ID || a.ConceptID != "" {
		t.Fatalf("ledger linkage: record=%v concept=%q", a.MasteryRecordID, a.ConceptID)
	}

	stored, err := f.records.Get(dbctx.Context{Ctx: context.Background()}, userID, types.SkillTypeNamesFaces, "")
	if err != nil || stored == nil {
		t.Fatalf("reload: rec=%v err=%v", stored, err)
	}
	if stored.ProbabilityKnown != rec.ProbabilityKnown || stored.Version != 1 {
		t.Fatalf("stored record diverged: %+v", stored)
	}
}

func TestRecordAttemptSecondIncorrectResetsInterval(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	t0 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := t0
	agg := f.aggregate(t, nil, nil, func() time.Time { return clock })
	userID := uuid.New()
	in := domainagg.RecordAttemptInput{UserID: userID, SkillType: types.SkillTypeNamesFaces, WasCorrect: true, DifficultyLevel: 9}

	first, err := agg.RecordAttempt(context.Background(), in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	clock = t0.Add(3 * time.Hour)
	in.WasCorrect = false
	second, err := agg.RecordAttempt(context.Background(), in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Created {
		t.Fatalf("second attempt must reuse the record")
	}
	if second.Record.ProbabilityKnown >= first.Record.ProbabilityKnown {
		t.Fatalf("expected decrease: %v -> %v", first.Record.ProbabilityKnown, second.Record.ProbabilityKnown)
	}
	if second.Attempt.Quality != 0 || second.Record.ReviewIntervalDays != 1.0 || second.Record.EaseFactor >= 2.5 {
		t.Fatalf("schedule after miss: quality=%d interval=%v ease=%v", second.Attempt.Quality, second.Record.ReviewIntervalDays, second.Record.EaseFactor)
	}
	if h := second.Attempt.HoursSinceLastPractice; h == nil || math.Abs(*h-3) > 1e-9 {
		t.Fatalf("hours since last practice: want=3 got=%v", h)
	}
	if second.Attempt.ProbabilityKnownBefore != first.Record.ProbabilityKnown {
		t.Fatalf("before snapshot: want=%v got=%v", first.Record.ProbabilityKnown, second.Attempt.ProbabilityKnownBefore)
	}
}

func TestRecordAttemptRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	agg := f.aggregate(t, nil, nil, nil)
	neg := -5
	bad := 1.5
	userID := uuid.New()

	cases := []struct {
		name string
		in   domainagg.RecordAttemptInput
	}{
		{"missing user", domainagg.RecordAttemptInput{SkillType: types.SkillTypeQuiz, DifficultyLevel: 3}},
		{"unknown skill", domainagg.RecordAttemptInput{UserID: userID, SkillType: "JUGGLING", DifficultyLevel: 3}},
		{"difficulty low", domainagg.RecordAttemptInput{UserID: userID, SkillType: types.SkillTypeQuiz, DifficultyLevel: 0}},
		{"difficulty high", domainagg.RecordAttemptInput{UserID: userID, SkillType: types.SkillTypeQuiz, DifficultyLevel: 11}},
		{"negative response time", domainagg.RecordAttemptInput{UserID: userID, SkillType: types.SkillTypeQuiz, DifficultyLevel: 3, ResponseTimeMS: &neg}},
		{"bad params", domainagg.RecordAttemptInput{UserID: userID, SkillType: types.SkillTypeQuiz, DifficultyLevel: 3, Params: types.RecordParams{ProbabilitySlip: &bad}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := agg.RecordAttempt(context.Background(), tc.in)
			if !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("want validation got=%v", err)
			}
		})
	}
	var n int64
	f.db.Model(&types.MasteryRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("validation failures must not create records, got %d", n)
	}
}

type failingAttemptRepo struct {
	repos.MasteryAttemptRepo
	mu    sync.Mutex
	fails int
	err   error
}

func (r *failingAttemptRepo) Create(dbc dbctx.Context, row *types.MasteryAttempt) error {
	r.mu.Lock()
	if r.fails > 0 {
		r.fails--
		r.mu.Unlock()
		return r.err
	}
	r.mu.Unlock()
	return r.MasteryAttemptRepo.Create(dbc, row)
}

func TestRecordAttemptLedgerFailureRollsBackRecord(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ledger := &failingAttemptRepo{MasteryAttemptRepo: f.attempts, fails: 1, err: errors.New("disk full")}
	agg := f.aggregate(t, nil, ledger, nil)
	userID := uuid.New()

	_, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
		UserID: userID, SkillType: types.SkillTypeWordLinking, ConceptID: "w1", WasCorrect: true, DifficultyLevel: 5,
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal got=%v", err)
	}
	got, err := f.records.Get(dbctx.Context{Ctx: context.Background()}, userID, types.SkillTypeWordLinking, "w1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("record must not survive a failed ledger write: %+v", got)
	}
	if n := f.countAttempts(t, userID); n != 0 {
		t.Fatalf("ledger rows: want=0 got=%d", n)
	}
}

func TestRecordAttemptRetriesInjectedConflict(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	ledger := &failingAttemptRepo{MasteryAttemptRepo: f.attempts, fails: 2, err: aggregates.ConflictError("injected")}
	agg := f.aggregate(t, nil, ledger, nil)
	userID := uuid.New()

	res, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
		UserID: userID, SkillType: types.SkillTypeQuiz, WasCorrect: true, DifficultyLevel: 2,
	})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if res.Retries != 2 {
		t.Fatalf("retries: want=2 got=%d", res.Retries)
	}
	if res.Record.TotalAttempts != 1 || res.Record.Version != 1 {
		t.Fatalf("retried write applied more than once: total=%d version=%d", res.Record.TotalAttempts, res.Record.Version)
	}
	if n := f.countAttempts(t, userID); n != 1 {
		t.Fatalf("ledger rows: want=1 got=%d", n)
	}
	if n := f.hooks.Count(aggtest.SignalConflict, ""); n != 2 {
		t.Fatalf("conflict hooks: want=2 got=%d", n)
	}
}

func TestRecordAttemptCommitFailureSurfacesConflictAfterRetries(t *testing.T) {
	db := testutil.SQLite(t)
	f := newFixture(t, db)
	runner := &aggtest.InjectedTxRunner{DB: db, FailCommit: aggregates.ConflictError("commit raced")}
	agg := f.aggregate(t, runner, nil, nil)
	userID := uuid.New()

	_, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
		UserID: userID, SkillType: types.SkillTypeMemoryPalace, WasCorrect: false, DifficultyLevel: 4,
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict got=%v", err)
	}
	if runner.BeginCalls != 4 || runner.RollbackCalls != 4 {
		t.Fatalf("runner: begin=%d rollback=%d", runner.BeginCalls, runner.RollbackCalls)
	}
	var n int64
	db.Model(&types.MasteryRecord{}).Where("user_id = ?", userID).Count(&n)
	if n != 0 {
		t.Fatalf("records after rolled back commits: want=0 got=%d", n)
	}
}

func runConcurrentAttempts(t *testing.T, f fixture, n int) uuid.UUID {
	t.Helper()
	agg := f.aggregate(t, nil, nil, nil)
	userID := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
				UserID: userID, SkillType: types.SkillTypeNumberPeg, ConceptID: "pegs", WasCorrect: i%2 == 0, DifficultyLevel: 6,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordAttempt: %v", err)
		}
	}

	var recs []types.MasteryRecord
	if err := f.db.Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records: want=1 got=%d", len(recs))
	}
	if recs[0].TotalAttempts != n || recs[0].Version != n {
		t.Fatalf("lost update: total=%d version=%d want=%d", recs[0].TotalAttempts, recs[0].Version, n)
	}
	if recs[0].CorrectAttempts != (n+1)/2 {
		t.Fatalf("correct: want=%d got=%d", (n+1)/2, recs[0].CorrectAttempts)
	}
	if got := f.countAttempts(t, userID); got != int64(n) {
		t.Fatalf("ledger rows: want=%d got=%d", n, got)
	}
	return userID
}

func TestRecordAttemptConcurrentSameTupleSQLite(t *testing.T) {
	runConcurrentAttempts(t, newFixture(t, testutil.SQLite(t)), 8)
}

func TestRecordAttemptConcurrentSameTuplePostgres(t *testing.T) {
	runConcurrentAttempts(t, newFixture(t, testutil.DB(t)), 8)
}

func TestRecordAttemptDifferentTuplesAreIndependent(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	agg := f.aggregate(t, nil, nil, nil)
	userID := uuid.New()
	for _, st := range []types.SkillType{types.SkillTypeQuiz, types.SkillTypeWordLinking} {
		for _, concept := range []string{"", "a"} {
			if _, err := agg.RecordAttempt(context.Background(), domainagg.RecordAttemptInput{
				UserID: userID, SkillType: st, ConceptID: concept, WasCorrect: true, DifficultyLevel: 3,
			}); err != nil {
				t.Fatalf("RecordAttempt(%s,%q): %v", st, concept, err)
			}
		}
	}
	recs, err := f.records.ListByUser(dbctx.Context{Ctx: context.Background()}, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("records: want=4 got=%d", len(recs))
	}
	for _, r := range recs {
		if r.TotalAttempts != 1 {
			t.Fatalf("record %s/%q: total=%d", r.SkillType, r.ConceptID, r.TotalAttempts)
		}
	}
}

func TestRecordAttemptParamsApplyOnlyAtCreation(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	agg := f.aggregate(t, nil, nil, nil)
	userID := uuid.New()
	slip, guess := 0.2, 0.3
	in := domainagg.RecordAttemptInput{
		UserID: userID, SkillType: types.SkillTypeQuiz, WasCorrect: true, DifficultyLevel: 5,
		Params: types.RecordParams{ProbabilitySlip: &slip, ProbabilityGuess: &guess},
	}
	res, err := agg.RecordAttempt(context.Background(), in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if res.Record.ProbabilitySlip != 0.2 || res.Record.ProbabilityGuess != 0.3 {
		t.Fatalf("params at creation: slip=%v guess=%v", res.Record.ProbabilitySlip, res.Record.ProbabilityGuess)
	}
	other := 0.05
	in.Params = types.RecordParams{ProbabilityGuess: &other}
	res, err = agg.RecordAttempt(context.Background(), in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Record.ProbabilityGuess != 0.3 {
		t.Fatalf("guess changed after creation: %v", res.Record.ProbabilityGuess)
	}
}

func TestMasteryAggregateContract(t *testing.T) {
	f := newFixture(t, testutil.SQLite(t))
	c := f.aggregate(t, nil, nil, nil).Contract()
	if !c.RequiresAggregateOwnedTx() || c.Name != domainagg.MasteryAggregateContract.Name {
		t.Fatalf("unexpected contract: %+v", c)
	}
}
