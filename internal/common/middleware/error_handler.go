package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"friend-connect-backend/internal/common/errors"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID assigns every request an id, reusing the caller's X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error")
		sendErrorResponse(c, appErr)
		c.Abort()
	})
}

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
		}
		logError(logger, appErr, c)
		sendErrorResponse(c, appErr)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := getRequestID(c)
	status := appErr.HTTPStatus()

	// Internal causes stay in the logs.
	public := appErr
	if status == http.StatusInternalServerError {
		public = errors.New(appErr.Code, "Internal server error")
		public.Timestamp = appErr.Timestamp
	}
	public.WithRequestID(requestID)

	if appErr.Code == errors.ErrCodeTooManyRequests {
		if retry, ok := appErr.Details["retry_after_seconds"]; ok {
			c.Header("Retry-After", fmt.Sprint(retry))
		}
	}

	c.JSON(status, ErrorResponse{
		Success:   false,
		Error:     public,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

func logError(logger zerolog.Logger, appErr *errors.AppError, c *gin.Context) {
	var evt *zerolog.Event
	switch {
	case appErr.IsInternal(), appErr.HTTPStatus() == http.StatusInternalServerError:
		evt = logger.Error()
	case appErr.IsUnauthorized():
		evt = logger.Warn()
	default:
		evt = logger.Info()
	}

	evt = evt.
		Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)
	if userID := CurrentUserID(c); userID != "" {
		evt = evt.Str("user_id", userID)
	}
	if len(appErr.Details) > 0 {
		evt = evt.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		evt = evt.AnErr("cause", appErr.Cause)
	}
	if appErr.IsInternal() && len(appErr.Stack) > 0 {
		evt = evt.Strs("stack", appErr.Stack)
	}
	evt.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(requestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
