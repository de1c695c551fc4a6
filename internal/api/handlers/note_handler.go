package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/domain/repositories"
)

// NoteHandler accepts note generation requests and serves stored notes.
type NoteHandler struct {
	budget   *services.BudgetGuard
	queue    providers.JobQueue
	notes    repositories.ClinicalNoteRepository
	defaults services.RequestDefaults
	now      func() time.Time
}

// NewNoteHandler creates a note handler. notes may be nil when stored notes are not served.
func NewNoteHandler(budget *services.BudgetGuard, queue providers.JobQueue, notes repositories.ClinicalNoteRepository, defaults services.RequestDefaults) *NoteHandler {
	return &NoteHandler{
		budget:   budget,
		queue:    queue,
		notes:    notes,
		defaults: defaults,
		now:      time.Now,
	}
}

type generateNoteRequest struct {
	Tier   string `json:"tier"`
	Effort string `json:"effort"`
}

type generateNoteResponse struct {
	JobID        string                   `json:"job_id"`
	TranscriptID string                   `json:"transcript_id"`
	Status       string                   `json:"status"`
	Tier         entities.Tier            `json:"tier"`
	Effort       entities.Effort          `json:"effort"`
	Remaining    entities.BudgetRemaining `json:"remaining"`
}

// GenerateNote handles POST /api/transcripts/{id}/notes
func (h *NoteHandler) GenerateNote(w http.ResponseWriter, r *http.Request) {
	transcriptID := r.PathValue("id")
	if transcriptID == "" {
		respondWithError(w, http.StatusBadRequest, "transcript ID is required")
		return
	}

	var body generateNoteRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		respondWithAppError(w, err)
		return
	}
	tier, effort := h.defaults.Resolve(body.Tier, body.Effort)

	identity := clientIdentity(r)
	decision := h.budget.Admit(r.Context(), identity)
	if !decision.Allowed {
		respondBudgetDenied(w, decision, h.now())
		return
	}

	job := &entities.NoteJob{
		ID:           uuid.NewString(),
		TranscriptID: transcriptID,
		Identity:     identity,
		Tier:         tier,
		Effort:       effort,
		EnqueuedAt:   h.now().UTC(),
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("transcript_id", transcriptID).Msg("failed to enqueue note job")
		respondWithError(w, http.StatusServiceUnavailable, "failed to queue note generation")
		return
	}

	setRemainingHeader(w, decision.Remaining)
	respondWithJSON(w, http.StatusAccepted, generateNoteResponse{
		JobID:        job.ID,
		TranscriptID: transcriptID,
		Status:       "queued",
		Tier:         tier,
		Effort:       effort,
		Remaining:    decision.Remaining,
	})
}

// GetNote handles GET /api/transcripts/{id}/note
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	transcriptID := r.PathValue("id")
	if transcriptID == "" {
		respondWithError(w, http.StatusBadRequest, "transcript ID is required")
		return
	}
	if h.notes == nil {
		respondWithError(w, http.StatusNotImplemented, "stored notes are not available")
		return
	}

	note, err := h.notes.GetByTranscriptID(r.Context(), transcriptID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, note)
}
