package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type Repos struct {
	MasteryRecord  repos.MasteryRecordRepo
	MasteryAttempt repos.MasteryAttemptRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		MasteryRecord:  repos.NewMasteryRecordRepo(db, log),
		MasteryAttempt: repos.NewMasteryAttemptRepo(db, log),
	}
}
