// Package errors defines the typed application error shared by services,
// adapters and handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	// ErrorTypeConflict covers illegal transcript status transitions.
	ErrorTypeConflict ErrorType = "CONFLICT"
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeGenerationFailed means the reasoning gateway could not produce a
	// result. The wrapped error carries the gateway failure class.
	ErrorTypeGenerationFailed ErrorType = "GENERATION_FAILED"

	// ErrorTypeBudgetExceeded means a request was denied before dispatch.
	ErrorTypeBudgetExceeded ErrorType = "BUDGET_EXCEEDED"
)

var httpStatus = map[ErrorType]int{
	ErrorTypeNotFound:         http.StatusNotFound,
	ErrorTypeValidation:       http.StatusBadRequest,
	ErrorTypeConflict:         http.StatusConflict,
	ErrorTypeInternal:         http.StatusInternalServerError,
	ErrorTypeGenerationFailed: http.StatusServiceUnavailable,
	ErrorTypeBudgetExceeded:   http.StatusTooManyRequests,
}

// Exposed reports whether the message of this type may be shown to clients.
// Internal and generation failures carry upstream detail and are not.
func (t ErrorType) Exposed() bool {
	switch t {
	case ErrorTypeNotFound, ErrorTypeValidation, ErrorTypeConflict, ErrorTypeBudgetExceeded:
		return true
	}
	return false
}

// AppError is a classified error with a client-facing message and an optional cause.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Err: cause}
}

func NewNotFoundError(message string) *AppError {
	return newError(ErrorTypeNotFound, message, nil)
}

func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message, nil)
}

func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message, nil)
}

func NewInternalError(message string, err error) *AppError {
	return newError(ErrorTypeInternal, message, err)
}

// NewGenerationFailedError wraps a gateway failure raised while generating content.
func NewGenerationFailedError(message string, err error) *AppError {
	return newError(ErrorTypeGenerationFailed, message, err)
}

// TypeOf returns the type of the first AppError in err's chain, or "" when
// there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err is an AppError of the given type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// HTTPStatus maps err onto a response status. Unclassified errors are 500.
func HTTPStatus(err error) int {
	if status, ok := httpStatus[TypeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
