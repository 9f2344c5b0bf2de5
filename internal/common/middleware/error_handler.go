package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roblox669900-cpu/giveaway-bot/internal/common/errors"
)

const requestIDKey = "request_id"

// ErrorHandler recovers panics and answers with an internal AppError.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := getRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithRequestID(requestID).
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr, logger)
	})
}

// RequestID propagates X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// AbortWithError answers with err, wrapping plain errors as internal ones.
func AbortWithError(c *gin.Context, err error, logger zerolog.Logger) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
	}
	sendErrorResponse(c, appErr, logger)
	c.Abort()
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError, logger zerolog.Logger) {
	requestID := getRequestID(c)

	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)

	logError(appErr, logger, c)

	c.JSON(HTTPStatus(appErr), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// HTTPStatus maps an AppError code to an HTTP status.
func HTTPStatus(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeInvalidDuration, errors.ErrCodeInvalidWinners:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeGiveawayNotFound:
		return http.StatusNotFound
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeResolutionAborted, errors.ErrCodeNoParticipants:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeDiscordAPI:
		return http.StatusBadGateway
	case errors.ErrCodeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, logger zerolog.Logger, c *gin.Context) {
	var event *zerolog.Event
	switch {
	case appErr.IsInternal():
		event = logger.Error()
	case appErr.IsValidation(), appErr.IsNotFound():
		event = logger.Info()
	default:
		event = logger.Warn()
	}

	event = event.
		Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)
	if len(appErr.Details) > 0 {
		event = event.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		event = event.Err(appErr.Cause)
	}
	event.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(requestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
