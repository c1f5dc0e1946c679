package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos"
	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
	"github.com/yungbote/neurobridge-mastery/internal/learning/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/yungbote/neurobridge-mastery/internal/services")

const (
	DefaultAttemptListLimit = 50
	MaxAttemptListLimit     = 500
)

// MasteryAttemptInput is one graded exercise outcome.
type MasteryAttemptInput struct {
	SkillType         string         `json:"skill_type"`
	ConceptID         *string        `json:"concept_id,omitempty"`
	ExerciseSessionID string         `json:"exercise_session_id"`
	WasCorrect        bool           `json:"was_correct"`
	DifficultyLevel   int            `json:"difficulty_level"`
	ResponseTimeMS    *int           `json:"response_time_ms,omitempty"`
	UserSkillLevel    *int           `json:"user_skill_level,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	ProbabilityLearned *float64 `json:"probability_learned,omitempty"`
	ProbabilitySlip    *float64 `json:"probability_slip,omitempty"`
	ProbabilityGuess   *float64 `json:"probability_guess,omitempty"`
}

// MasteryRecordView is a record plus the fields derived from it at read time.
type MasteryRecordView struct {
	types.MasteryRecord
	AccuracyRate float64 `json:"accuracy_rate"`
	IsMastered   bool    `json:"is_mastered"`
	NeedsReview  bool    `json:"needs_review"`
}

func NewMasteryRecordView(rec *types.MasteryRecord, now time.Time) MasteryRecordView {
	return MasteryRecordView{
		MasteryRecord: *rec,
		AccuracyRate:  rec.AccuracyRate(),
		IsMastered:    rec.IsMastered(),
		NeedsReview:   rec.NeedsReview(now),
	}
}

func newViews(recs []*types.MasteryRecord, now time.Time) []MasteryRecordView {
	out := make([]MasteryRecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewMasteryRecordView(r, now))
	}
	return out
}

type RecordAttemptOutput struct {
	Record  MasteryRecordView     `json:"record"`
	Attempt *types.MasteryAttempt `json:"attempt"`
}

type MasteryStats struct {
	TotalSkills           int     `json:"total_skills"`
	MasteredSkills        int     `json:"mastered_skills"`
	SkillsDueForReview    int     `json:"skills_due_for_review"`
	AverageMastery        float64 `json:"average_mastery"`
	SkillsNeedingPractice int     `json:"skills_needing_practice"`
}

type MasteryExport struct {
	UserID     uuid.UUID               `json:"user_id"`
	ExportedAt time.Time               `json:"exported_at"`
	Records    []MasteryRecordView     `json:"records"`
	Attempts   []*types.MasteryAttempt `json:"attempts"`
}

type MasteryService interface {
	RecordAttempt(ctx context.Context, userID uuid.UUID, in MasteryAttemptInput) (*RecordAttemptOutput, error)

	GetRecord(ctx context.Context, userID uuid.UUID, skillType string, conceptID string) (*MasteryRecordView, error)
	ListRecords(ctx context.Context, userID uuid.UUID, skillType string) ([]MasteryRecordView, error)
	GetSkillsDueForReview(ctx context.Context, userID uuid.UUID) ([]MasteryRecordView, error)
	GetSkillsNeedingPractice(ctx context.Context, userID uuid.UUID) ([]MasteryRecordView, error)
	GetMasteredSkills(ctx context.Context, userID uuid.UUID) ([]MasteryRecordView, error)
	GetMasteryStats(ctx context.Context, userID uuid.UUID) (MasteryStats, error)
	GetRecommendedDifficulty(ctx context.Context, userID uuid.UUID, skillType string) (int, error)

	ListAttempts(ctx context.Context, userID uuid.UUID, limit int) ([]*types.MasteryAttempt, error)
	ExportUserData(ctx context.Context, userID uuid.UUID) (*MasteryExport, error)
}

type masteryService struct {
	log      *logger.Logger
	agg      domainagg.MasteryAggregate
	records  repos.MasteryRecordRepo
	attempts repos.MasteryAttemptRepo
	cache    MasteryCache
	events   MasteryEventPublisher
	now      func() time.Time
}

func NewMasteryService(
	baseLog *logger.Logger,
	agg domainagg.MasteryAggregate,
	records repos.MasteryRecordRepo,
	attempts repos.MasteryAttemptRepo,
	cache MasteryCache,
	events MasteryEventPublisher,
) MasteryService {
	if cache == nil {
		cache = NewNoopMasteryCache()
	}
	if events == nil {
		events = NewNoopMasteryEventPublisher()
	}
	return &masteryService{
		log:      baseLog.With("service", "MasteryService"),
		agg:      agg,
		records:  records,
		attempts: attempts,
		cache:    cache,
		events:   events,
		now:      time.Now,
	}
}

func startSpan(ctx context.Context, name string, userID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "MasteryService."+name, trace.WithAttributes(attribute.String("user.id", userID.String())))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func requireUser(op string, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return domainagg.Validation(op, "user_id is required")
	}
	return nil
}

func parseSkillType(op, raw string) (types.SkillType, error) {
	st, err := personalization.ParseSkillType(raw)
	if err != nil {
		return "", domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	return st, nil
}

// readErr tags storage failures on the read path.
func readErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}

func (s *masteryService) RecordAttempt(ctx context.Context, userID uuid.UUID, in MasteryAttemptInput) (out *RecordAttemptOutput, err error) {
	const op = "MasteryService.RecordAttempt"
	ctx, span := startSpan(ctx, "RecordAttempt", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	st, err := parseSkillType(op, in.SkillType)
	if err != nil {
		return nil, err
	}
	conceptID := ""
	if in.ConceptID != nil {
		conceptID = *in.ConceptID
	}

	res, err := s.agg.RecordAttempt(ctx, domainagg.RecordAttemptInput{
		UserID:            userID,
		SkillType:         st,
		ConceptID:         conceptID,
		ExerciseSessionID: strings.TrimSpace(in.ExerciseSessionID),
		WasCorrect:        in.WasCorrect,
		DifficultyLevel:   in.DifficultyLevel,
		ResponseTimeMS:    in.ResponseTimeMS,
		UserSkillLevel:    in.UserSkillLevel,
		Metadata:          in.Metadata,
		Params: personalization.RecordParams{
			ProbabilityLearned: in.ProbabilityLearned,
			ProbabilitySlip:    in.ProbabilitySlip,
			ProbabilityGuess:   in.ProbabilityGuess,
		},
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("mastery.skill_type", string(st)),
		attribute.Int("mastery.retries", res.Retries),
		attribute.Bool("mastery.created", res.Created),
	)

	rec := res.Record
	attempt := res.Attempt
	s.afterCommit(ctx, &rec, &attempt)

	s.log.Debug("attempt recorded",
		"user_id", userID,
		"skill_type", st,
		"concept_id", rec.ConceptID,
		"was_correct", in.WasCorrect,
		"probability_known", rec.ProbabilityKnown,
		"retries", res.Retries,
	)
	return &RecordAttemptOutput{
		Record:  NewMasteryRecordView(&rec, res.Recorded),
		Attempt: &attempt,
	}, nil
}

// afterCommit runs the side effects of a committed attempt. Their failures
// are logged; the attempt itself stays recorded.
func (s *masteryService) afterCommit(ctx context.Context, rec *types.MasteryRecord, attempt *types.MasteryAttempt) {
	if err := s.cache.Invalidate(ctx, rec.UserID); err != nil {
		s.log.Warn("mastery cache invalidate failed", "user_id", rec.UserID, "error", err)
	}
	ev := AttemptRecordedEvent{
		EventID:                uuid.New(),
		EventType:              EventAttemptRecorded,
		OccurredAt:             attempt.CreatedAt,
		UserID:                 rec.UserID,
		SkillType:              rec.SkillType,
		ConceptID:              rec.ConceptID,
		MasteryRecordID:        rec.ID,
		AttemptID:              attempt.ID,
		ExerciseSessionID:      attempt.ExerciseSessionID,
		WasCorrect:             attempt.WasCorrect,
		DifficultyLevel:        attempt.DifficultyLevel,
		Quality:                attempt.Quality,
		ProbabilityKnownBefore: attempt.ProbabilityKnownBefore,
		ProbabilityKnownAfter:  attempt.ProbabilityKnownAfter,
		IsMastered:             rec.IsMastered(),
		BecameMastered:         rec.IsMastered() && attempt.ProbabilityKnownBefore < types.MasteredThreshold,
		NextReviewAt:           rec.NextReviewAt,
	}
	if err := s.events.PublishAttemptRecorded(ctx, ev); err != nil {
		s.log.Warn("mastery event publish failed", "user_id", rec.UserID, "attempt_id", attempt.ID, "error", err)
	}
}

func (s *masteryService) GetRecord(ctx context.Context, userID uuid.UUID, skillType string, conceptID string) (out *MasteryRecordView, err error) {
	const op = "MasteryService.GetRecord"
	ctx, span := startSpan(ctx, "GetRecord", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	st, err := parseSkillType(op, skillType)
	if err != nil {
		return nil, err
	}
	conceptID = personalization.NormalizeConceptID(conceptID)
	rec, err := s.records.Get(dbctx.Context{Ctx: ctx}, userID, st, conceptID)
	if err != nil {
		return nil, readErr(op, err)
	}
	if rec == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "mastery record not found", nil)
	}
	v := NewMasteryRecordView(rec, s.now())
	return &v, nil
}

func (s *masteryService) ListRecords(ctx context.Context, userID uuid.UUID, skillType string) (out []MasteryRecordView, err error) {
	const op = "MasteryService.ListRecords"
	ctx, span := startSpan(ctx, "ListRecords", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	var recs []*types.MasteryRecord
	if strings.TrimSpace(skillType) == "" {
		recs, err = s.records.ListByUser(dbc, userID)
	} else {
		st, perr := parseSkillType(op, skillType)
		if perr != nil {
			return nil, perr
		}
		recs, err = s.records.ListByUserAndSkillType(dbc, userID, st)
	}
	if err != nil {
		return nil, readErr(op, err)
	}
	return newViews(recs, s.now()), nil
}

func (s *masteryService) GetSkillsDueForReview(ctx context.Context, userID uuid.UUID) (out []MasteryRecordView, err error) {
	const op = "MasteryService.GetSkillsDueForReview"
	ctx, span := startSpan(ctx, "GetSkillsDueForReview", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	now := s.now()
	recs, err := s.records.ListDueForReview(dbctx.Context{Ctx: ctx}, userID, now)
	if err != nil {
		return nil, readErr(op, err)
	}
	return newViews(recs, now), nil
}

func (s *masteryService) GetSkillsNeedingPractice(ctx context.Context, userID uuid.UUID) (out []MasteryRecordView, err error) {
	const op = "MasteryService.GetSkillsNeedingPractice"
	ctx, span := startSpan(ctx, "GetSkillsNeedingPractice", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	recs, err := s.records.ListNeedingPractice(dbctx.Context{Ctx: ctx}, userID, types.PracticeThreshold)
	if err != nil {
		return nil, readErr(op, err)
	}
	return newViews(recs, s.now()), nil
}

func (s *masteryService) GetMasteredSkills(ctx context.Context, userID uuid.UUID) (out []MasteryRecordView, err error) {
	const op = "MasteryService.GetMasteredSkills"
	ctx, span := startSpan(ctx, "GetMasteredSkills", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	recs, err := s.records.ListMastered(dbctx.Context{Ctx: ctx}, userID, types.MasteredThreshold)
	if err != nil {
		return nil, readErr(op, err)
	}
	return newViews(recs, s.now()), nil
}

// statsExcluded lists the non-assessment skill types kept out of stats.
func statsExcluded() []types.SkillType {
	var out []types.SkillType
	for _, st := range personalization.SkillTypes() {
		if !st.IsAssessment() {
			out = append(out, st)
		}
	}
	return out
}

// cacheGeneration reads the user's cache generation. ok is false when the
// cache is unreachable, in which case the read bypasses the cache entirely.
func (s *masteryService) cacheGeneration(ctx context.Context, userID uuid.UUID) (gen int64, ok bool) {
	gen, err := s.cache.Generation(ctx, userID)
	if err != nil {
		s.log.Warn("mastery cache generation read failed", "user_id", userID, "error", err)
		return 0, false
	}
	return gen, true
}

// minStatsTTL is the shortest lifetime worth caching stats for.
const minStatsTTL = time.Second

func (s *masteryService) GetMasteryStats(ctx context.Context, userID uuid.UUID) (out MasteryStats, err error) {
	const op = "MasteryService.GetMasteryStats"
	ctx, span := startSpan(ctx, "GetMasteryStats", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return MasteryStats{}, err
	}
	gen, cacheable := s.cacheGeneration(ctx, userID)
	if cacheable {
		if cached, ok, cerr := s.cache.GetStats(ctx, userID, gen); cerr != nil {
			s.log.Warn("mastery stats cache read failed", "user_id", userID, "error", cerr)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	now := s.now()
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.records.Stats(dbc, userID, now, statsExcluded())
	if err != nil {
		return MasteryStats{}, readErr(op, err)
	}
	out = MasteryStats{
		TotalSkills:           int(row.TotalSkills),
		MasteredSkills:        int(row.MasteredSkills),
		SkillsDueForReview:    int(row.SkillsDueForReview),
		AverageMastery:        row.AverageMastery,
		SkillsNeedingPractice: int(row.SkillsNeedingPractice),
	}
	if !cacheable {
		return out, nil
	}

	// skills_due_for_review changes without a write once the next record
	// comes due, so the entry must not outlive that moment.
	var ttl time.Duration
	next, nerr := s.records.NextReviewAfter(dbc, userID, now, statsExcluded())
	switch {
	case nerr != nil:
		s.log.Warn("mastery next review lookup failed", "user_id", userID, "error", nerr)
		return out, nil
	case next != nil:
		ttl = next.Sub(now)
		if ttl < minStatsTTL {
			return out, nil
		}
	}
	if cerr := s.cache.SetStats(ctx, userID, gen, out, ttl); cerr != nil {
		s.log.Warn("mastery stats cache write failed", "user_id", userID, "error", cerr)
	}
	return out, nil
}

func (s *masteryService) GetRecommendedDifficulty(ctx context.Context, userID uuid.UUID, skillType string) (level int, err error) {
	const op = "MasteryService.GetRecommendedDifficulty"
	ctx, span := startSpan(ctx, "GetRecommendedDifficulty", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return 0, err
	}
	st, err := parseSkillType(op, skillType)
	if err != nil {
		return 0, err
	}
	gen, cacheable := s.cacheGeneration(ctx, userID)
	if cacheable {
		if cached, ok, cerr := s.cache.GetDifficulty(ctx, userID, gen, st); cerr != nil {
			s.log.Warn("mastery difficulty cache read failed", "user_id", userID, "error", cerr)
		} else if ok {
			return cached, nil
		}
	}

	recs, err := s.records.ListByUserAndSkillType(dbctx.Context{Ctx: ctx}, userID, st)
	if err != nil {
		return 0, readErr(op, err)
	}
	level = mastery.RecommendDifficulty(mastery.MeanKnown(recs))
	if cacheable {
		if cerr := s.cache.SetDifficulty(ctx, userID, gen, st, level); cerr != nil {
			s.log.Warn("mastery difficulty cache write failed", "user_id", userID, "error", cerr)
		}
	}
	return level, nil
}

func (s *masteryService) ListAttempts(ctx context.Context, userID uuid.UUID, limit int) (out []*types.MasteryAttempt, err error) {
	const op = "MasteryService.ListAttempts"
	ctx, span := startSpan(ctx, "ListAttempts", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, domainagg.Validation(op, "limit must be >= 0")
	case limit == 0:
		limit = DefaultAttemptListLimit
	case limit > MaxAttemptListLimit:
		limit = MaxAttemptListLimit
	}
	out, err = s.attempts.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit)
	if err != nil {
		return nil, readErr(op, err)
	}
	return out, nil
}

func (s *masteryService) ExportUserData(ctx context.Context, userID uuid.UUID) (out *MasteryExport, err error) {
	const op = "MasteryService.ExportUserData"
	ctx, span := startSpan(ctx, "ExportUserData", userID)
	defer func() { finishSpan(span, err) }()

	if err := requireUser(op, userID); err != nil {
		return nil, err
	}

	var (
		recs     []*types.MasteryRecord
		attempts []*types.MasteryAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = s.records.ListByUser(dbctx.Context{Ctx: gctx}, userID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.ListByUserChronological(dbctx.Context{Ctx: gctx}, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, readErr(op, err)
	}

	now := s.now()
	s.log.Info("mastery data exported", "user_id", userID, "records", len(recs), "attempts", len(attempts))
	return &MasteryExport{
		UserID:     userID,
		ExportedAt: now.UTC(),
		Records:    newViews(recs, now),
		Attempts:   attempts,
	}, nil
}
