package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-mastery/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-mastery/internal/http/middleware"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	MasteryHandler *httpH.MasteryHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	protected.Use(httpMW.RequireUser())
	{
		// Mastery
		if cfg.MasteryHandler != nil {
			m := protected.Group("/mastery")
			m.POST("/attempts", cfg.MasteryHandler.RecordAttempt)
			m.GET("/attempts", cfg.MasteryHandler.ListAttempts)
			m.GET("/stats", cfg.MasteryHandler.Stats)
			m.GET("/due", cfg.MasteryHandler.ListDueForReview)
			m.GET("/practice", cfg.MasteryHandler.ListNeedingPractice)
			m.GET("/mastered", cfg.MasteryHandler.ListMastered)
			m.GET("/records", cfg.MasteryHandler.ListRecords)
			m.GET("/records/:skill_type", cfg.MasteryHandler.GetRecord)
			m.GET("/difficulty/:skill_type", cfg.MasteryHandler.RecommendedDifficulty)
			m.GET("/export", cfg.MasteryHandler.Export)
		}
	}

	return r
}
