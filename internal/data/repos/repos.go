package repos

import (
	"github.com/yungbote/neurobridge-mastery/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"gorm.io/gorm"
)

type MasteryRecordRepo = learning.MasteryRecordRepo
type MasteryAttemptRepo = learning.MasteryAttemptRepo
type MasteryStatsRow = learning.MasteryStatsRow

func NewMasteryRecordRepo(db *gorm.DB, baseLog *logger.Logger) MasteryRecordRepo {
	return learning.NewMasteryRecordRepo(db, baseLog)
}
func NewMasteryAttemptRepo(db *gorm.DB, baseLog *logger.Logger) MasteryAttemptRepo {
	return learning.NewMasteryAttemptRepo(db, baseLog)
}
