package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// ReasoningGateway issues calls to the external reasoning API.
type ReasoningGateway interface {
	// Complete runs one logical call and returns the final text.
	Complete(ctx context.Context, req *entities.GatewayRequest) (*entities.GatewayResponse, error)

	// Stream opens a streaming call. Retries cover opening the stream only; once
	// events flow, a failure arrives as a terminal error event and the channel closes.
	Stream(ctx context.Context, req *entities.GatewayRequest) (<-chan entities.StreamEvent, error)
}

// FailureKind is the closed set of gateway failure classes.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureOverloaded  FailureKind = "overloaded"
	FailureServerError FailureKind = "server_error"
	FailureConnection  FailureKind = "connection_failure"
	FailureClientError FailureKind = "client_error"
)

// GatewayError is a classified gateway failure. It is computed once at the
// transport boundary; retry decisions depend on Kind only.
type GatewayError struct {
	Kind   FailureKind
	Status int
	// RetryAfter is the server hint, zero when absent.
	RetryAfter time.Duration
	Message    string
	Err        error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("reasoning gateway %s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("reasoning gateway %s: %s", e.Kind, msg)
}

// Unwrap implements the unwrap interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class may be retried.
func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case FailureRateLimited, FailureOverloaded, FailureServerError, FailureConnection:
		return true
	}
	return false
}

// FailureKindOf extracts the failure class from err, or "" when err is not a gateway failure.
func FailureKindOf(err error) FailureKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}
