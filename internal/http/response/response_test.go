package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
)

func TestStatusForCode(t *testing.T) {
	cases := map[domainagg.ErrorCode]int{
		domainagg.CodeValidation:         http.StatusBadRequest,
		domainagg.CodeNotFound:           http.StatusNotFound,
		domainagg.CodeConflict:           http.StatusConflict,
		domainagg.CodeRetryable:          http.StatusServiceUnavailable,
		domainagg.CodeInternal:           http.StatusInternalServerError,
		domainagg.CodeInvariantViolation: http.StatusInternalServerError,
		"":                               http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusForCode(code); got != want {
			t.Fatalf("StatusForCode(%q): want=%d got=%d", code, want, got)
		}
	}
}

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { RespondServiceError(c, err) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	var env ErrorEnvelope
	if decErr := json.Unmarshal(rec.Body.Bytes(), &env); decErr != nil {
		t.Fatalf("decode envelope: %v body=%s", decErr, rec.Body.String())
	}
	return rec, env
}

func TestRespondServiceErrorValidation(t *testing.T) {
	err := fmt.Errorf("record: %w", domainagg.Validation("op", "difficulty_level must be in [1,10]"))
	rec, env := serveError(t, err)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
	if env.Error.Code != "validation" {
		t.Fatalf("code: want=validation got=%q", env.Error.Code)
	}
	if !strings.Contains(env.Error.Message, "difficulty_level") {
		t.Fatalf("message: got=%q", env.Error.Message)
	}
}

func TestRespondServiceErrorHidesInternalCause(t *testing.T) {
	rec, env := serveError(t, errors.New("dial tcp 10.0.0.3:5432: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	if env.Error.Code != "internal" {
		t.Fatalf("code: want=internal got=%q", env.Error.Code)
	}
	if strings.Contains(env.Error.Message, "10.0.0.3") {
		t.Fatalf("internal cause leaked: %q", env.Error.Message)
	}
}

func TestRespondServiceErrorConflict(t *testing.T) {
	rec, env := serveError(t, domainagg.NewError(domainagg.CodeConflict, "op", "retries exhausted", nil))
	if rec.Code != http.StatusConflict || env.Error.Code != "conflict" {
		t.Fatalf("conflict: status=%d code=%q", rec.Code, env.Error.Code)
	}
}
