package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/http/middleware"
	"github.com/tbourn/telemed-orchestrator/internal/lookup"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// ErrorResponse is the error body of every REST endpoint. Function
// endpoints answer with functions.Response instead.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode constants
	Code string `json:"code" example:"not_found"`
	// Localized, safe to display
	Message string `json:"message" example:"Especialidade não encontrada"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged through the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failCause(c, status, code, msg, nil)
}

// failCause is fail with the underlying error attached to the log line.
func failCause(c *gin.Context, status int, code, msg string, cause error) {
	rid := middleware.RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get(middleware.HeaderRequestID)
	}
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: rid, Code: code, Message: msg})
}

// Fail lets the router answer NoRoute/NoMethod with the same body.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr classifies err:
//
//	*validation.Error                 400 bad_request
//	*lookup.Error wrapping not found  404 not_found
//	*lookup.Error                     502 upstream_error
//	anything else                     500 code, fallback message
func failErr(c *gin.Context, err error, code, fallback string) {
	var (
		ve *validation.Error
		le *lookup.Error
	)
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Message)
	case errors.As(err, &le) && errors.Is(err, lookup.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, le.Message)
	case errors.As(err, &le):
		failCause(c, http.StatusBadGateway, ErrCodeUpstream, le.Message, le.Err)
	default:
		failCause(c, http.StatusInternalServerError, code, fallback, err)
	}
}

// unavailable answers routes whose backing service was not wired.
func unavailable(c *gin.Context) {
	fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "Serviço indisponível")
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
