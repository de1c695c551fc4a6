package repositories

import (
	"context"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// TranscriptRepository defines the transcript persistence the note pipeline depends on.
type TranscriptRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Transcript, error)

	// UpdateStatus moves a transcript to status. reason is stored for failed transcripts.
	UpdateStatus(ctx context.Context, id string, status entities.ProcessingStatus, reason string) error

	// UpdateQuality stores the advisory sufficiency verdict.
	UpdateQuality(ctx context.Context, id string, quality entities.TranscriptQuality) error
}
