package app

import (
	server "github.com/yungbote/neurobridge-mastery/internal/http"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlerset Handlers) *server.Server {
	routerName := ""
	if cfg.Otel.Enabled {
		routerName = cfg.Otel.ServiceName
	}
	return server.NewServer(server.RouterConfig{
		Log:            log,
		ServiceName:    routerName,
		AllowedOrigins: cfg.AllowedOrigins,
		MasteryHandler: handlerset.Mastery,
		HealthHandler:  handlerset.Health,
	})
}
