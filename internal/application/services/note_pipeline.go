package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/domain/repositories"
	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

// Pipeline outcomes recorded per run.
const (
	OutcomeCompleted = "completed"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
)

// bookkeepingTimeout bounds status writes made after the job context is gone.
const bookkeepingTimeout = 5 * time.Second

// NotePipeline turns one transcript into a stored, annotated clinical note.
type NotePipeline struct {
	transcripts repositories.TranscriptRepository
	notes       repositories.ClinicalNoteRepository
	quality     *TranscriptQualityEvaluator
	generator   *ClinicalNoteGenerator
	annotator   *TerminologyAnnotator
	budget      *BudgetGuard
	logger      zerolog.Logger
}

// NewNotePipeline wires the pipeline stages. budget may be nil when calls are not metered.
func NewNotePipeline(
	transcripts repositories.TranscriptRepository,
	notes repositories.ClinicalNoteRepository,
	quality *TranscriptQualityEvaluator,
	generator *ClinicalNoteGenerator,
	annotator *TerminologyAnnotator,
	budget *BudgetGuard,
) *NotePipeline {
	return &NotePipeline{
		transcripts: transcripts,
		notes:       notes,
		quality:     quality,
		generator:   generator,
		annotator:   annotator,
		budget:      budget,
		logger:      log.Logger.With().Str("component", "note_pipeline").Logger(),
	}
}

// WithLogger returns a copy of the pipeline logging to logger.
func (p *NotePipeline) WithLogger(logger zerolog.Logger) *NotePipeline {
	clone := *p
	clone.logger = logger
	return &clone
}

// Process runs the pipeline for job. On a generation failure the transcript is
// marked failed and the error is returned so the job can be redelivered.
func (p *NotePipeline) Process(ctx context.Context, job *entities.NoteJob) (*entities.ClinicalNote, error) {
	if job == nil || job.TranscriptID == "" {
		return nil, apperrors.NewValidationError("note job requires a transcript id")
	}

	ctx, span := observability.StartSpan(ctx, "NotePipeline.Process")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("transcript.id", job.TranscriptID),
		attribute.String("job.id", job.ID),
		attribute.String("tier", string(job.Tier)),
		attribute.Int("job.attempt", job.Attempt),
	)

	logger := p.logger.With().
		Str("job_id", job.ID).
		Str("transcript_id", job.TranscriptID).
		Int("attempt", job.Attempt).
		Logger()

	transcript, err := p.transcripts.GetByID(ctx, job.TranscriptID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if err := p.transcripts.UpdateStatus(ctx, transcript.ID, entities.StatusProcessing, ""); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	quality := p.quality.Evaluate(transcript.Text)
	if err := p.transcripts.UpdateQuality(ctx, transcript.ID, quality); err != nil {
		logger.Warn().Err(err).Msg("failed to store transcript quality")
	}
	if !quality.Sufficient {
		logger.Warn().
			Int("word_count", quality.WordCount).
			Msg("transcript below quality threshold, generating anyway")
	}

	note, err := p.generator.Generate(ctx, transcript.Text, transcript.Metadata, job.Tier, job.Effort)
	if err != nil {
		p.fail(ctx, logger, transcript.ID, err)
		observability.RecordError(span, err)
		observability.RecordPipelineOutcome(ctx, OutcomeFailed)
		return nil, err
	}

	if p.budget != nil {
		p.budget.Record(ctx, job.Identity, 200)
	}

	if !note.Degraded() {
		note.Annotations = p.annotator.Annotate(ctx, note.Sections, job.Tier, job.Effort)
	}

	note.TranscriptID = transcript.ID
	if err := p.notes.Upsert(ctx, note); err != nil {
		p.fail(ctx, logger, transcript.ID, err)
		observability.RecordError(span, err)
		observability.RecordPipelineOutcome(ctx, OutcomeFailed)
		return nil, err
	}

	if err := p.transcripts.UpdateStatus(ctx, transcript.ID, entities.StatusCompleted, ""); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	outcome := OutcomeCompleted
	if note.Degraded() {
		outcome = OutcomeDegraded
	}
	observability.RecordPipelineOutcome(ctx, outcome)
	logger.Info().
		Str("note_id", note.ID).
		Str("outcome", string(note.Outcome)).
		Int("annotated_sections", len(note.Annotations)).
		Msg("clinical note stored")
	return note, nil
}

// fail marks the transcript failed. It runs even when ctx has expired.
func (p *NotePipeline) fail(ctx context.Context, logger zerolog.Logger, transcriptID string, cause error) {
	class := string(providers.FailureKindOf(cause))
	if class == "" {
		class = "internal"
		if ctx.Err() != nil {
			class = "timeout"
		}
	}

	logger.Error().Err(cause).Str("failure_class", class).Msg("note pipeline failed")

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()
	if err := p.transcripts.UpdateStatus(writeCtx, transcriptID, entities.StatusFailed, "generation_failed: "+class); err != nil {
		logger.Error().Err(err).Msg("failed to mark transcript failed")
	}
}
