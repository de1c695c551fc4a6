package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
)

// EducationStreamHandler streams patient education documents over SSE.
type EducationStreamHandler struct {
	education *services.EducationService
	relay     *services.StreamingRelay
	budget    *services.BudgetGuard
	defaults  services.RequestDefaults
	now       func() time.Time
}

// NewEducationStreamHandler creates the streaming handler.
func NewEducationStreamHandler(education *services.EducationService, relay *services.StreamingRelay, budget *services.BudgetGuard, defaults services.RequestDefaults) *EducationStreamHandler {
	return &EducationStreamHandler{
		education: education,
		relay:     relay,
		budget:    budget,
		defaults:  defaults,
		now:       time.Now,
	}
}

type educationStreamRequest struct {
	Topic        string `json:"topic"`
	ReadingLevel string `json:"reading_level"`
	Language     string `json:"language"`
	NoteContext  string `json:"note_context"`
	Tier         string `json:"tier"`
	Effort       string `json:"effort"`
}

// StreamEducation handles POST /api/education/stream
func (h *EducationStreamHandler) StreamEducation(w http.ResponseWriter, r *http.Request) {
	var body educationStreamRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		respondWithAppError(w, err)
		return
	}
	tier, effort := h.defaults.Resolve(body.Tier, body.Effort)
	req := services.EducationRequest{
		Topic:        body.Topic,
		ReadingLevel: body.ReadingLevel,
		Language:     body.Language,
		NoteContext:  body.NoteContext,
		Tier:         tier,
		Effort:       effort,
	}
	if err := h.education.Validate(req); err != nil {
		respondWithAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	identity := clientIdentity(r)
	decision := h.budget.Admit(r.Context(), identity)
	if !decision.Allowed {
		respondBudgetDenied(w, decision, h.now())
		return
	}

	// The upstream call outlives the client connection.
	streamCtx := context.WithoutCancel(r.Context())
	events, err := h.education.Stream(streamCtx, req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	remaining := h.budget.Record(streamCtx, identity, http.StatusOK)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	setRemainingHeader(w, remaining)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(w, flusher)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.relay.Relay(streamCtx, events, sink)
	}()

	select {
	case <-done:
	case <-r.Context().Done():
		sink.Detach()
		zerolog.Ctx(r.Context()).Info().Str("identity", identity).Msg("client left education stream, generation continues")
	}
}

// sseSink writes relay events to one SSE response. After Detach every Emit
// returns providers.ErrSinkDetached without touching the response.
type sseSink struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	detached bool
}

var _ providers.StreamSink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher}
}

// Emit writes one event and flushes it.
func (s *sseSink) Emit(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return providers.ErrSinkDetached
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		s.detached = true
		return fmt.Errorf("%w: %v", providers.ErrSinkDetached, err)
	}
	s.flusher.Flush()
	return nil
}

// Detach stops all further writes. It waits for an in-progress write to finish.
func (s *sseSink) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}
