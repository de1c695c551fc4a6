package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var transcriptColumns = []string{
	"id", "visit_id", "text", "word_count", "sufficient", "processing_status", "failure_reason",
	"specialty", "visit_date", "practitioner", "created_at", "updated_at",
}

func TestTranscriptAdapter_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)

	visitDate := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM "transcripts" WHERE \("id" = \$1\)`).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(transcriptColumns).AddRow(
			"t-1", "v-1", "Patient reports palpitations.", 3, false, "pending", nil,
			"cardiology", visitDate, "Dr. Okafor", created, created,
		))

	got, err := adapter.GetByID(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "v-1", got.VisitID)
	assert.Equal(t, entities.StatusPending, got.Status)
	assert.Equal(t, "cardiology", got.Metadata.Specialty)
	assert.Equal(t, visitDate, got.Metadata.VisitDate)
	assert.Empty(t, got.FailureReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptAdapter_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)

	mock.ExpectQuery(`FROM "transcripts"`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(transcriptColumns))

	_, err := adapter.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestTranscriptAdapter_UpdateStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)

	mock.ExpectExec(`UPDATE "transcripts" SET .*"processing_status"=\$2.*NOW\(\).* WHERE .*"processing_status" IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpdateStatus(context.Background(), "t-1", entities.StatusCompleted, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptAdapter_UpdateStatus_RejectedTransition(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)
	created := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE "transcripts"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM "transcripts"`).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(transcriptColumns).AddRow(
			"t-1", "v-1", "text", 1, false, "pending", nil, nil, nil, nil, created, created,
		))

	err := adapter.UpdateStatus(context.Background(), "t-1", entities.StatusCompleted, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Contains(t, err.Error(), "from pending to completed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptAdapter_UpdateQuality(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)

	mock.ExpectExec(`UPDATE "transcripts" SET "sufficient"=\$1,"updated_at"=NOW\(\),"word_count"=\$2 WHERE \("id" = \$3\)`).
		WithArgs(false, 12, "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpdateQuality(context.Background(), "t-1", entities.TranscriptQuality{WordCount: 12, Sufficient: false})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptAdapter_UpdateQuality_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := newTranscriptAdapter(db)

	mock.ExpectExec(`UPDATE "transcripts"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.UpdateQuality(context.Background(), "t-9", entities.TranscriptQuality{WordCount: 80, Sufficient: true})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
