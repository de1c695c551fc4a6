package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("status 529")
	err := NewGenerationFailedError("clinical note generation failed", cause)

	assert.Equal(t, "GENERATION_FAILED: clinical note generation failed: status 529", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NOT_FOUND: transcript t-1 not found", NewNotFoundError("transcript t-1 not found").Error())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("pipeline: %w", NewNotFoundError("transcript t-1 not found"))

	assert.True(t, IsType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsType(wrapped, ErrorTypeInternal))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeNotFound))
	assert.False(t, IsType(nil, ""))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("x"), http.StatusNotFound},
		{NewValidationError("x"), http.StatusBadRequest},
		{NewConflictError("x"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", NewGenerationFailedError("x", nil)), http.StatusServiceUnavailable},
		{&AppError{Type: ErrorTypeBudgetExceeded}, http.StatusTooManyRequests},
		{NewInternalError("x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestExposed(t *testing.T) {
	assert.True(t, ErrorTypeValidation.Exposed())
	assert.True(t, ErrorTypeBudgetExceeded.Exposed())
	assert.False(t, ErrorTypeGenerationFailed.Exposed())
	assert.False(t, ErrorTypeInternal.Exposed())
	assert.False(t, ErrorType("").Exposed())
}
