package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWith(zap.New(core), false, "")

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/mastery/stats", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/mastery/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	cases := []struct {
		path  string
		level zapcore.Level
		route string
	}{
		{"/healthcheck", zapcore.DebugLevel, "/healthcheck"},
		{"/api/mastery/stats", zapcore.InfoLevel, "/api/mastery/stats"},
		{"/api/mastery/boom", zapcore.ErrorLevel, "/api/mastery/boom"},
		{"/nope", zapcore.WarnLevel, "unmatched"},
	}
	for _, tc := range cases {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
	}

	entries := logs.All()
	if len(entries) != len(cases) {
		t.Fatalf("entries: want=%d got=%d", len(cases), len(entries))
	}
	for i, tc := range cases {
		if entries[i].Level != tc.level {
			t.Fatalf("%s level: want=%v got=%v", tc.path, tc.level, entries[i].Level)
		}
		if got := entries[i].ContextMap()["route"]; got != tc.route {
			t.Fatalf("%s route: want=%q got=%v", tc.path, tc.route, got)
		}
	}
}
