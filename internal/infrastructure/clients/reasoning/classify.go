package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/pkg/retry"
)

const maxErrorBody = 64 * 1024

type apiErrorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyStatus maps an error response to its failure class.
func classifyStatus(resp *http.Response, now time.Time) *providers.GatewayError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	gwErr := &providers.GatewayError{
		Status:  resp.StatusCode,
		Message: errorMessage(body, resp.StatusCode),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		gwErr.Kind = providers.FailureRateLimited
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == 529:
		gwErr.Kind = providers.FailureOverloaded
	case resp.StatusCode >= 500:
		gwErr.Kind = providers.FailureServerError
	default:
		gwErr.Kind = providers.FailureClientError
	}

	if gwErr.Retryable() {
		gwErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now)
	}
	return gwErr
}

// classifyTransport maps a failure with no usable response. Caller cancellation
// is returned as the bare context error so it is never retried.
func classifyTransport(callerCtx context.Context, err error) error {
	if ctxErr := callerCtx.Err(); ctxErr != nil {
		return ctxErr
	}
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &providers.GatewayError{
		Kind: providers.FailureConnection,
		Err:  err,
	}
}

func classifyStreamError(body []byte) *providers.GatewayError {
	var env apiErrorEnvelope
	_ = json.Unmarshal(body, &env)

	gwErr := &providers.GatewayError{Message: env.Error.Message}
	if gwErr.Message == "" {
		gwErr.Message = "stream error"
	}
	switch env.Error.Type {
	case "rate_limit_error":
		gwErr.Kind = providers.FailureRateLimited
	case "overloaded_error":
		gwErr.Kind = providers.FailureOverloaded
	case "api_error", "":
		gwErr.Kind = providers.FailureServerError
	default:
		gwErr.Kind = providers.FailureClientError
	}
	return gwErr
}

func errorMessage(body []byte, status int) string {
	var env apiErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Invalid or past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// classifyOutcome adapts a gateway error to the retry policy.
func classifyOutcome(err error) retry.Outcome {
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) {
		return retry.Outcome{
			Retryable: gwErr.Retryable(),
			Hint:      gwErr.RetryAfter,
			Class:     string(gwErr.Kind),
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Outcome{Class: "canceled"}
	}
	return retry.Outcome{Class: fmt.Sprintf("%T", err)}
}

func statusOf(err error) int {
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}
