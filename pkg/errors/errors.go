package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/repositories"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
	cause     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Common errors
var (
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized   = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden      = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrConflict       = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
)

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates an AppError that keeps err as its cause
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   err,
	}
}

// WithDetails adds details to an error
func WithDetails(err *AppError, details string) *AppError {
	return &AppError{
		Code:      err.Code,
		Message:   err.Message,
		Details:   details,
		Retriable: err.Retriable,
		cause:     err.cause,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetStatusCode returns the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// FromError maps domain and storage errors onto AppErrors. Errors that are
// already AppErrors are returned unchanged.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, analysis.ErrInvalidColumn):
		return &AppError{Code: http.StatusBadRequest, Message: "Invalid column", Details: err.Error(), cause: err}
	case stderrors.Is(err, analysis.ErrTimeout):
		return &AppError{Code: http.StatusGatewayTimeout, Message: "Analysis timed out", cause: err}
	case stderrors.Is(err, analysis.ErrStorageUnavailable):
		return &AppError{Code: http.StatusServiceUnavailable, Message: "Sample store unavailable", Retriable: true, cause: err}
	case stderrors.Is(err, repositories.ErrNotFound):
		return &AppError{Code: http.StatusNotFound, Message: "Resource not found", Details: err.Error(), cause: err}
	case stderrors.Is(err, repositories.ErrDuplicate):
		return &AppError{Code: http.StatusConflict, Message: "Resource already exists", Details: err.Error(), cause: err}
	}

	return &AppError{Code: http.StatusInternalServerError, Message: "Internal server error", cause: err}
}
