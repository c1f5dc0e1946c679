package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-mastery/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// probeRoutes are polled by orchestrators and only logged at debug level
// while healthy.
var probeRoutes = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
}

// RequestLogger emits one structured line per request once the handler chain
// has finished. Severity follows the response status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := append([]interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}, ctxutil.LogFields(c.Request.Context())...)
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		case probeRoutes[route]:
			log.Debug("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
