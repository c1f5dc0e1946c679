package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/http/response"
	"github.com/yungbote/neurobridge-mastery/internal/platform/ctxutil"
)

// HeaderUserID is set by the upstream gateway after it authenticates the learner.
const HeaderUserID = "X-User-Id"

// AttachRequestContext copies the gateway identity onto the request context.
// A missing or malformed header leaves the context untouched.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil && id != uuid.Nil {
				ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

// RequireUser rejects requests that reached it without a learner identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid "+HeaderUserID+" header"))
			c.Abort()
			return
		}
		c.Next()
	}
}
