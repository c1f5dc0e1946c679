package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/neurobridge-mastery/internal/http/handlers"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type Handlers struct {
	Mastery *httpH.MasteryHandler
	Health  *httpH.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Mastery: httpH.NewMasteryHandler(log, serviceset.Mastery),
		Health:  httpH.NewHealthHandler(dbPinger(db)),
	}
}

func dbPinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
