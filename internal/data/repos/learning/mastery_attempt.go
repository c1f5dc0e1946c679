package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// MasteryAttemptRepo is append-only: there is no update or delete path.
type MasteryAttemptRepo interface {
	Create(dbc dbctx.Context, row *types.MasteryAttempt) error
	// ListByUser returns newest first; limit <= 0 means no limit.
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.MasteryAttempt, error)
	ListByRecord(dbc dbctx.Context, recordID uuid.UUID) ([]*types.MasteryAttempt, error)
	// ListByUserChronological returns the full ledger oldest first.
	ListByUserChronological(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryAttempt, error)
}

type masteryAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryAttemptRepo(db *gorm.DB, baseLog *logger.Logger) MasteryAttemptRepo {
	return &masteryAttemptRepo{db: db, log: baseLog.With("repo", "MasteryAttemptRepo")}
}

func (r *masteryAttemptRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *masteryAttemptRepo) Create(dbc dbctx.Context, row *types.MasteryAttempt) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.tx(dbc).Create(row).Error
}

func (r *masteryAttemptRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.MasteryAttempt, error) {
	out := []*types.MasteryAttempt{}
	if userID == uuid.Nil {
		return out, nil
	}
	q := r.tx(dbc).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryAttemptRepo) ListByRecord(dbc dbctx.Context, recordID uuid.UUID) ([]*types.MasteryAttempt, error) {
	out := []*types.MasteryAttempt{}
	if recordID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("mastery_record_id = ?", recordID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *masteryAttemptRepo) ListByUserChronological(dbc dbctx.Context, userID uuid.UUID) ([]*types.MasteryAttempt, error) {
	out := []*types.MasteryAttempt{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
