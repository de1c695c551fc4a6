package entities

import "time"

// ProcessingStatus tracks a transcript through the note pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// CanTransition reports whether moving from s to next is allowed.
// Statuses only move forward, except re-entry into processing for a retry
// (from failed or a crashed run left in processing) or a regeneration (from completed).
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusFailed, StatusCompleted:
		return next == StatusProcessing
	}
	return false
}

// VisitMetadata is the visit context embedded in generation prompts.
type VisitMetadata struct {
	Specialty    string    `json:"specialty" db:"specialty"`
	VisitDate    time.Time `json:"visit_date" db:"visit_date"`
	Practitioner string    `json:"practitioner" db:"practitioner"`
}

// Transcript is the raw text of a recorded visit.
type Transcript struct {
	ID            string           `json:"id" db:"id"`
	VisitID       string           `json:"visit_id" db:"visit_id"`
	Text          string           `json:"text" db:"text"`
	WordCount     int              `json:"word_count" db:"word_count"`
	Sufficient    bool             `json:"sufficient" db:"sufficient"`
	Status        ProcessingStatus `json:"processing_status" db:"processing_status"`
	FailureReason string           `json:"failure_reason,omitempty" db:"failure_reason"`
	Metadata      VisitMetadata    `json:"metadata"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// TranscriptQuality is the advisory sufficiency verdict for a transcript.
type TranscriptQuality struct {
	WordCount  int  `json:"word_count"`
	Sufficient bool `json:"sufficient"`
}

// AllStatuses lists every processing status.
var AllStatuses = []ProcessingStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// PredecessorsOf returns the statuses allowed to move to next.
func PredecessorsOf(next ProcessingStatus) []ProcessingStatus {
	var out []ProcessingStatus
	for _, s := range AllStatuses {
		if s.CanTransition(next) {
			out = append(out, s)
		}
	}
	return out
}
