package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/repositories"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

// ClinicalNoteAdapter implements ClinicalNoteRepository
type ClinicalNoteAdapter struct {
	db   *sql.DB
	goqu *goqu.Database
	now  func() time.Time
}

// NewClinicalNoteAdapter creates a new clinical note adapter
func NewClinicalNoteAdapter(client *postgres.Client) repositories.ClinicalNoteRepository {
	return newClinicalNoteAdapter(client.DB())
}

func newClinicalNoteAdapter(db *sql.DB) *ClinicalNoteAdapter {
	return &ClinicalNoteAdapter{db: db, goqu: goqu.New("postgres", db), now: time.Now}
}

// GetByTranscriptID retrieves the note generated for a transcript
func (a *ClinicalNoteAdapter) GetByTranscriptID(ctx context.Context, transcriptID string) (*entities.ClinicalNote, error) {
	query, args, err := a.goqu.Select(
		"id",
		"transcript_id",
		"sections",
		"entities",
		"annotations",
		"outcome",
		"raw_response",
		"model",
		"tier",
		"content_hash",
		"created_at",
		"updated_at",
	).
		From("clinical_notes").
		Where(goqu.Ex{"transcript_id": transcriptID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build clinical note query", err)
	}

	var (
		note                               entities.ClinicalNote
		sectionsRaw, entitiesRaw, annotRaw []byte
		outcome, tier                      string
		rawResponse, model, contentHash    sql.NullString
	)
	err = a.db.QueryRowContext(ctx, query, args...).Scan(
		&note.ID,
		&note.TranscriptID,
		&sectionsRaw,
		&entitiesRaw,
		&annotRaw,
		&outcome,
		&rawResponse,
		&model,
		&tier,
		&contentHash,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("clinical note for transcript %s not found", transcriptID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get clinical note", err)
	}

	note.Outcome = entities.ParseOutcome(outcome)
	note.Tier = entities.Tier(tier)
	note.RawResponse = rawResponse.String
	note.Model = model.String
	note.ContentHash = contentHash.String

	if len(sectionsRaw) > 0 {
		if err := json.Unmarshal(sectionsRaw, &note.Sections); err != nil {
			return nil, apperrors.NewInternalError("failed to decode note sections", err)
		}
	}
	if len(entitiesRaw) > 0 {
		_ = json.Unmarshal(entitiesRaw, &note.Entities)
	}
	if len(annotRaw) > 0 {
		_ = json.Unmarshal(annotRaw, &note.Annotations)
	}

	return &note, nil
}

// Upsert writes the note, replacing the existing note for the same transcript
func (a *ClinicalNoteAdapter) Upsert(ctx context.Context, note *entities.ClinicalNote) error {
	if note == nil {
		return apperrors.NewValidationError("clinical note is required")
	}
	if note.TranscriptID == "" {
		return apperrors.NewValidationError("clinical note transcript_id is required")
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := a.now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	sectionsBytes, err := json.Marshal(note.Sections)
	if err != nil {
		return apperrors.NewInternalError("failed to encode note sections", err)
	}
	entitiesBytes, _ := json.Marshal(note.Entities)
	annotationsBytes, _ := json.Marshal(note.Annotations)

	query := `
		INSERT INTO clinical_notes
			(id, transcript_id, sections, entities, annotations, outcome, raw_response, model, tier, content_hash, created_at, updated_at)
		VALUES
			($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (transcript_id)
		DO UPDATE SET
			sections = EXCLUDED.sections,
			entities = EXCLUDED.entities,
			annotations = EXCLUDED.annotations,
			outcome = EXCLUDED.outcome,
			raw_response = EXCLUDED.raw_response,
			model = EXCLUDED.model,
			tier = EXCLUDED.tier,
			content_hash = EXCLUDED.content_hash,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = a.db.QueryRowContext(
		ctx,
		query,
		note.ID,
		note.TranscriptID,
		string(sectionsBytes),
		string(entitiesBytes),
		string(annotationsBytes),
		string(note.Outcome),
		note.RawResponse,
		note.Model,
		string(note.Tier),
		note.ContentHash,
		note.CreatedAt,
		note.UpdatedAt,
	).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert clinical note", err)
	}

	return nil
}
