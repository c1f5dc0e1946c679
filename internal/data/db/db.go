package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver     string
	Postgres   PostgresConfig
	SQLitePath string
}

// Service is a connected database handle.
type Service interface {
	DB() *gorm.DB
}

// Open connects to the configured driver and migrates the schema.
func Open(logg *logger.Logger, cfg Config) (Service, error) {
	var (
		svc Service
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverPostgres:
		svc, err = NewPostgresService(logg, cfg.Postgres)
	case DriverSQLite:
		svc, err = NewSQLiteService(logg, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateAll(svc.DB()); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return svc, nil
}
