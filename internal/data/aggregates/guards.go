package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

// CASGuard writes versioned rows. Every successful write bumps version by one.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// CompareAndSet applies updates to table row id only while its version still
// equals expectedVersion. A lost race returns a conflict error.
func (g CASGuard) CompareAndSet(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) error {
	db := dbc.Tx
	if db == nil {
		db = g.db
	}
	if db == nil {
		return ValidationError("CompareAndSet: no db handle")
	}
	table = strings.TrimSpace(table)
	switch {
	case table == "" || id == uuid.Nil:
		return ValidationError("CompareAndSet: table and id are required")
	case expectedVersion < 0:
		return ValidationError("CompareAndSet: expected version must be >= 0")
	}

	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = expectedVersion + 1
	res := db.WithContext(dbc.Ctx).
		Table(table).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ConflictError(fmt.Sprintf("%s %s: version %d is stale", table, id, expectedVersion))
	}
	return nil
}
