package repositories

import (
	"context"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// ClinicalNoteRepository stores one note per transcript.
type ClinicalNoteRepository interface {
	GetByTranscriptID(ctx context.Context, transcriptID string) (*entities.ClinicalNote, error)

	// Upsert writes the note for its transcript, replacing any earlier note.
	Upsert(ctx context.Context, note *entities.ClinicalNote) error
}
