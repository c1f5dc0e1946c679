package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/neurobridge-mastery/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-mastery/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusForCode maps an aggregate error code onto an HTTP status.
func StatusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError classifies a service error for transport. Internal failures
// keep their cause out of the client message.
func ToAPIError(err error) *apierr.Error {
	code := domainagg.CodeOf(err)
	switch code {
	case "":
		code = domainagg.CodeInternal
		fallthrough
	case domainagg.CodeInternal, domainagg.CodeInvariantViolation, domainagg.CodePreconditionFailed:
		return apierr.Internal(StatusForCode(code), string(code), err)
	default:
		return apierr.New(StatusForCode(code), string(code), err)
	}
}

// RespondServiceError writes err using its aggregate code.
func RespondServiceError(c *gin.Context, err error) {
	ae := ToAPIError(err)
	if ae.Hidden {
		_ = c.Error(err)
	}
	RespondError(c, ae.Status, ae.Code, errors.New(ae.Public()))
}
