package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
)

// masteryTupleIndex enforces one record per (user, skill type, concept).
const masteryTupleIndex = "idx_mastery_record_tuple"

// Models lists every table owned by the mastery service.
func Models() []interface{} {
	return []interface{}{
		&types.MasteryRecord{},
		&types.MasteryAttempt{},
	}
}

// AutoMigrateAll creates or updates the schema and then checks that the
// uniqueness index the write path relies on is present.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	if !db.Migrator().HasIndex(&types.MasteryRecord{}, masteryTupleIndex) {
		return fmt.Errorf("missing index %s on mastery records", masteryTupleIndex)
	}
	return nil
}
