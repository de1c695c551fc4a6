package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

// UserIDHeader identifies the caller for per-identity budgets.
const UserIDHeader = "X-User-ID"

const (
	msgGlobalLimit     = "The daily demo capacity has been used up. Please try again tomorrow."
	msgIdentityLimit   = "You have reached your personal daily limit. It resets at midnight UTC."
	msgGenerationRetry = "We couldn't generate this right now. Please try again in a moment."
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to write response body")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error to a status code. Gateway failure classes
// never reach the client.
func respondWithAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr) && appErr.Type.Exposed():
		respondWithError(w, status, appErr.Message)
	case status == http.StatusServiceUnavailable:
		respondWithError(w, status, msgGenerationRetry)
	default:
		respondWithError(w, status, "internal server error")
	}
}

type budgetDeniedResponse struct {
	Error     string                   `json:"error"`
	Reason    entities.DenyReason      `json:"reason"`
	Remaining entities.BudgetRemaining `json:"remaining"`
}

func respondBudgetDenied(w http.ResponseWriter, decision entities.BudgetDecision, now time.Time) {
	message := msgIdentityLimit
	if decision.Reason == entities.DenyGlobalLimit {
		message = msgGlobalLimit
	}
	w.Header().Set("Retry-After", strconv.Itoa(secondsUntilNextUTCDay(now)))
	respondWithJSON(w, http.StatusTooManyRequests, budgetDeniedResponse{
		Error:     message,
		Reason:    decision.Reason,
		Remaining: decision.Remaining,
	})
}

func setRemainingHeader(w http.ResponseWriter, remaining entities.BudgetRemaining) {
	w.Header().Set("X-Budget-Remaining", strconv.FormatInt(remaining.Identity, 10))
}

func secondsUntilNextUTCDay(now time.Time) int {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	secs := int(next.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIdentity is the X-User-ID header, else the peer IP.
func clientIdentity(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// decodeOptionalJSON decodes a JSON body into dst. An empty body is allowed.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewValidationError("invalid request body")
	}
	return nil
}

const maxBodyBytes = 1 << 20
