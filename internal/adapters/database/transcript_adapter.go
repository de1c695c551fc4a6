package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/repositories"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

const transcriptsTable = "transcripts"

// TranscriptAdapter implements TranscriptRepository
type TranscriptAdapter struct {
	db   *sql.DB
	goqu *goqu.Database
}

// NewTranscriptAdapter creates a new transcript adapter
func NewTranscriptAdapter(client *postgres.Client) repositories.TranscriptRepository {
	return newTranscriptAdapter(client.DB())
}

func newTranscriptAdapter(db *sql.DB) *TranscriptAdapter {
	return &TranscriptAdapter{db: db, goqu: goqu.New("postgres", db)}
}

// GetByID retrieves a transcript by ID
func (a *TranscriptAdapter) GetByID(ctx context.Context, id string) (*entities.Transcript, error) {
	query, args, err := a.goqu.Select(
		"id",
		"visit_id",
		"text",
		"word_count",
		"sufficient",
		"processing_status",
		"failure_reason",
		"specialty",
		"visit_date",
		"practitioner",
		"created_at",
		"updated_at",
	).
		From(transcriptsTable).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build transcript query", err)
	}

	var (
		t                               entities.Transcript
		status                          string
		reason, specialty, practitioner sql.NullString
		visitDate                       sql.NullTime
	)
	err = a.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID,
		&t.VisitID,
		&t.Text,
		&t.WordCount,
		&t.Sufficient,
		&status,
		&reason,
		&specialty,
		&visitDate,
		&practitioner,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("transcript with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get transcript", err)
	}

	t.Status = entities.ProcessingStatus(status)
	t.FailureReason = reason.String
	t.Metadata = entities.VisitMetadata{
		Specialty:    specialty.String,
		VisitDate:    visitDate.Time,
		Practitioner: practitioner.String,
	}
	return &t, nil
}

// UpdateStatus moves the transcript to status when its current status allows it
func (a *TranscriptAdapter) UpdateStatus(ctx context.Context, id string, status entities.ProcessingStatus, reason string) error {
	allowed := entities.PredecessorsOf(status)
	from := make([]string, 0, len(allowed))
	for _, s := range allowed {
		from = append(from, string(s))
	}

	query, args, err := a.goqu.Update(transcriptsTable).
		Set(goqu.Record{
			"processing_status": string(status),
			"failure_reason":    reason,
			"updated_at":        goqu.L("NOW()"),
		}).
		Where(goqu.Ex{
			"id":                id,
			"processing_status": from,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build transcript status update", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update transcript status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if rows > 0 {
		return nil
	}

	current, err := a.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewConflictError(fmt.Sprintf("transcript %s cannot move from %s to %s", id, current.Status, status))
}

// UpdateQuality stores the word count and sufficiency verdict
func (a *TranscriptAdapter) UpdateQuality(ctx context.Context, id string, quality entities.TranscriptQuality) error {
	query, args, err := a.goqu.Update(transcriptsTable).
		Set(goqu.Record{
			"word_count": quality.WordCount,
			"sufficient": quality.Sufficient,
			"updated_at": goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build transcript quality update", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update transcript quality", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("transcript with id %s not found", id))
	}
	return nil
}
