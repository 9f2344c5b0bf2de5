package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Giveaway lifecycle
	ErrCodeGiveawayNotFound  ErrorCode = "GIVEAWAY_NOT_FOUND"
	ErrCodeInvalidDuration   ErrorCode = "INVALID_DURATION"
	ErrCodeInvalidWinners    ErrorCode = "INVALID_WINNERS_COUNT"
	ErrCodeResolutionAborted ErrorCode = "RESOLUTION_ABORTED"
	ErrCodeNoParticipants    ErrorCode = "NO_PARTICIPANTS"
	ErrCodeDisplayFailure    ErrorCode = "DISPLAY_FAILURE"

	// Collaborators
	ErrCodeDiscordAPI ErrorCode = "DISCORD_API_ERROR"
	ErrCodeStore      ErrorCode = "STORE_ERROR"
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound || e.Code == ErrCodeGiveawayNotFound
}

// IsValidation reports InvalidInput failures rejected at command acceptance.
func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation ||
		e.Code == ErrCodeInvalidDuration ||
		e.Code == ErrCodeInvalidWinners
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeStore ||
		e.Code == ErrCodeDiscordAPI
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewInvalidDurationError(text string) *AppError {
	return New(ErrCodeInvalidDuration, fmt.Sprintf("Invalid duration %q: use a whole number followed by m, h or d", text)).
		WithDetail("input", text)
}

func NewInvalidWinnersError(count int) *AppError {
	return New(ErrCodeInvalidWinners, fmt.Sprintf("Winner count must be positive, got %d", count)).
		WithDetail("winners", count)
}

func NewNotFoundError(resource, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewGiveawayNotFoundError(giveawayID int64) *AppError {
	return New(ErrCodeGiveawayNotFound, fmt.Sprintf("Giveaway not found: %d", giveawayID)).
		WithDetail("giveaway_id", giveawayID)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

func NewResolutionAbortedError(giveawayID int64, reason string) *AppError {
	return New(ErrCodeResolutionAborted, fmt.Sprintf("Giveaway %d aborted: %s", giveawayID, reason)).
		WithDetail("giveaway_id", giveawayID).
		WithDetail("reason", reason)
}

func NewNoParticipantsError(giveawayID int64) *AppError {
	return New(ErrCodeNoParticipants, fmt.Sprintf("Giveaway %d has no participants", giveawayID)).
		WithDetail("giveaway_id", giveawayID)
}

func NewDisplayFailureError(giveawayID int64, err error) *AppError {
	return Wrap(err, ErrCodeDisplayFailure, fmt.Sprintf("Countdown refresh failed for giveaway %d", giveawayID)).
		WithDetail("giveaway_id", giveawayID)
}

func NewDiscordAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDiscordAPI, fmt.Sprintf("Discord API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStore, fmt.Sprintf("Store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil || !stderrors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
