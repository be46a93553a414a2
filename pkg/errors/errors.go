package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeAuthMissing        ErrorCode = "AUTH_MISSING"
	ErrCodeAuthInvalid        ErrorCode = "AUTH_INVALID_TOKEN"
	ErrCodeAuthExpired        ErrorCode = "AUTH_EXPIRED_TOKEN"
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeRoomNotFound       ErrorCode = "ROOM_NOT_FOUND"
	ErrCodeOwnerNotFound      ErrorCode = "OWNER_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeElementNotFound    ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeSnapshotNotFound   ErrorCode = "SNAPSHOT_NOT_FOUND"
	ErrCodeParticipantLimit   ErrorCode = "PARTICIPANT_LIMIT"
	ErrCodeCallLimit          ErrorCode = "CALL_PARTICIPANT_LIMIT"
	ErrCodeLimitCheckFailed   ErrorCode = "LIMIT_CHECK_FAILED"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wire is the client-facing form of the error. Errors are reported to the
// originating connection only, never broadcast.
type Wire struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ToWire converts the error to its client-facing payload.
func (e *AppError) ToWire() Wire {
	return Wire{Code: e.Code, Message: e.Message, Timestamp: time.Now()}
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewAuthError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewNotFoundError(code ErrorCode, resource string) *AppError {
	return NewAppError(code, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewCapacityError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message, http.StatusConflict)
}

func NewRateLimitError(window time.Duration) *AppError {
	e := NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
	return e.WithContext("window", window.String())
}

func NewBackendUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeBackendUnavailable, message, http.StatusServiceUnavailable)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}
