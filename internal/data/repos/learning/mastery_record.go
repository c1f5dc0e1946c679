package learning

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// MasteryStatsRow is the aggregate over a user's assessment records.
type MasteryStatsRow struct {
	TotalSkills           int64   `gorm:"column:total_skills"`
	MasteredSkills        int64   `gorm:"column:mastered_skills"`
	SkillsDueForReview    int64   `gorm:"column:skills_due_for_review"`
	SkillsNeedingPractice int64   `gorm:"column:skills_needing_practice"`
	AverageMastery        float64 `gorm:"column:average_mastery"`
}

type MasteryRecordRepo interface {
	// EnsureExists inserts row unless its (user, skill type, concept) tuple
	// already exists. created reports whether this call inserted it.
	EnsureExists(dbc dbctx.Context, row *types.MasteryRecord) (created bool, err error)
	// GetForUpdate loads the tuple and row-locks it where the driver supports it.
	GetForUpdate(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType, conceptID string) (*types.MasteryRecord, error)
	Get(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType, conceptID string) (*types.MasteryRecord, error)

	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryRecord, error)
	ListByUserAndSkillType(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType) ([]*types.MasteryRecord, error)
	ListDueForReview(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.MasteryRecord, error)
	ListNeedingPractice(dbc dbctx.Context, userID uuid.UUID, below float64) ([]*types.MasteryRecord, error)
	ListMastered(dbc dbctx.Context, userID uuid.UUID, atLeast float64) ([]*types.MasteryRecord, error)

	Stats(dbc dbctx.Context, userID uuid.UUID, now time.Time, excluded []types.SkillType) (MasteryStatsRow, error)
	// NextReviewAfter is the earliest next_review_at strictly after now, or
	// nil when no record of the user becomes due later.
	NextReviewAfter(dbc dbctx.Context, userID uuid.UUID, now time.Time, excluded []types.SkillType) (*time.Time, error)
}

type masteryRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryRecordRepo(db *gorm.DB, baseLog *logger.Logger) MasteryRecordRepo {
	return &masteryRecordRepo{db: db, log: baseLog.With("repo", "MasteryRecordRepo")}
}

func (r *masteryRecordRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *masteryRecordRepo) EnsureExists(dbc dbctx.Context, row *types.MasteryRecord) (bool, error) {
	if row == nil || row.UserID == uuid.Nil || row.SkillType == "" {
		return false, nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	res := r.tx(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_type"}, {Name: "concept_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *masteryRecordRepo) GetForUpdate(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType, conceptID string) (*types.MasteryRecord, error) {
	var row types.MasteryRecord
	err := r.tx(dbc).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND skill_type = ? AND concept_id = ?", userID, skillType, conceptID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *masteryRecordRepo) Get(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType, conceptID string) (*types.MasteryRecord, error) {
	var row types.MasteryRecord
	err := r.tx(dbc).
		Where("user_id = ? AND skill_type = ? AND concept_id = ?", userID, skillType, conceptID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *masteryRecordRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryRecord, error) {
	out := []*types.MasteryRecord{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ?", userID).
		Order("skill_type ASC, concept_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryRecordRepo) ListByUserAndSkillType(dbc dbctx.Context, userID uuid.UUID, skillType types.SkillType) ([]*types.MasteryRecord, error) {
	out := []*types.MasteryRecord{}
	if userID == uuid.Nil || skillType == "" {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ? AND skill_type = ?", userID, skillType).
		Order("concept_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryRecordRepo) ListDueForReview(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.MasteryRecord, error) {
	out := []*types.MasteryRecord{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?", userID, now.UTC()).
		Order("next_review_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryRecordRepo) ListNeedingPractice(dbc dbctx.Context, userID uuid.UUID, below float64) ([]*types.MasteryRecord, error) {
	out := []*types.MasteryRecord{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ? AND probability_known < ?", userID, below).
		Order("probability_known ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryRecordRepo) ListMastered(dbc dbctx.Context, userID uuid.UUID, atLeast float64) ([]*types.MasteryRecord, error) {
	out := []*types.MasteryRecord{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ? AND probability_known >= ?", userID, atLeast).
		Order("probability_known DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryRecordRepo) Stats(dbc dbctx.Context, userID uuid.UUID, now time.Time, excluded []types.SkillType) (MasteryStatsRow, error) {
	var row MasteryStatsRow
	if userID == uuid.Nil {
		return row, nil
	}
	q := r.tx(dbc).
		Model(&types.MasteryRecord{}).
		Select(
			"COUNT(*) AS total_skills, "+
				"COALESCE(SUM(CASE WHEN probability_known >= ? THEN 1 ELSE 0 END), 0) AS mastered_skills, "+
				"COALESCE(SUM(CASE WHEN next_review_at IS NOT NULL AND next_review_at <= ? THEN 1 ELSE 0 END), 0) AS skills_due_for_review, "+
				"COALESCE(SUM(CASE WHEN probability_known < ? THEN 1 ELSE 0 END), 0) AS skills_needing_practice, "+
				"COALESCE(AVG(probability_known), 0) AS average_mastery",
			types.MasteredThreshold, now.UTC(), types.PracticeThreshold,
		).
		Where("user_id = ?", userID)
	if len(excluded) > 0 {
		q = q.Where("skill_type NOT IN ?", excluded)
	}
	if err := q.Scan(&row).Error; err != nil {
		return MasteryStatsRow{}, err
	}
	return row, nil
}

func (r *masteryRecordRepo) NextReviewAfter(dbc dbctx.Context, userID uuid.UUID, now time.Time, excluded []types.SkillType) (*time.Time, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.MasteryRecord
	q := r.tx(dbc).
		Select("id", "next_review_at").
		Where("user_id = ? AND next_review_at IS NOT NULL AND next_review_at > ?", userID, now.UTC())
	if len(excluded) > 0 {
		q = q.Where("skill_type NOT IN ?", excluded)
	}
	err := q.Order("next_review_at ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.NextReviewAt, nil
}
