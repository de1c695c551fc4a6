package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/pkg/config"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

const (
	defaultPollWait   = 5 * time.Second
	dequeueErrBackoff = time.Second
)

// NoteProcessor runs the pipeline for one job.
type NoteProcessor interface {
	Process(ctx context.Context, job *entities.NoteJob) (*entities.ClinicalNote, error)
}

// NoteWorker pulls note jobs off the queue and runs them with bounded concurrency.
type NoteWorker struct {
	queue         providers.JobQueue
	processor     NoteProcessor
	concurrency   int
	jobTimeout    time.Duration
	maxDeliveries int
	lockTTL       time.Duration
	pollWait      time.Duration
	logger        zerolog.Logger
}

// NewNoteWorker creates a worker.
func NewNoteWorker(queue providers.JobQueue, processor NoteProcessor, cfg config.WorkerConfig) *NoteWorker {
	w := &NoteWorker{
		queue:         queue,
		processor:     processor,
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		maxDeliveries: cfg.MaxDeliveries,
		lockTTL:       cfg.LockTTL,
		pollWait:      defaultPollWait,
		logger:        log.Logger.With().Str("component", "note_worker").Logger(),
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 10 * time.Minute
	}
	if w.maxDeliveries <= 0 {
		w.maxDeliveries = 1
	}
	if w.lockTTL < w.jobTimeout {
		w.lockTTL = w.jobTimeout + time.Minute
	}
	return w
}

// WithLogger returns a copy of the worker logging to logger.
func (w *NoteWorker) WithLogger(logger zerolog.Logger) *NoteWorker {
	clone := *w
	clone.logger = logger
	return &clone
}

// WithPollWait sets how long one dequeue blocks waiting for work.
func (w *NoteWorker) WithPollWait(d time.Duration) *NoteWorker {
	clone := *w
	clone.pollWait = d
	return &clone
}

// Run consumes jobs until ctx is cancelled, then waits for in-flight jobs.
func (w *NoteWorker) Run(ctx context.Context) error {
	w.logger.Info().
		Int("concurrency", w.concurrency).
		Dur("job_timeout", w.jobTimeout).
		Int("max_deliveries", w.maxDeliveries).
		Msg("note worker started")

	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for ctx.Err() == nil {
		job, err := w.queue.Dequeue(ctx, w.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Error().Err(err).Msg("failed to dequeue note job")
			select {
			case <-ctx.Done():
			case <-time.After(dequeueErrBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		// Blocks while the pool is full.
		g.Go(func() error {
			w.Handle(ctx, job)
			return nil
		})
	}

	err := g.Wait()
	w.logger.Info().Msg("note worker stopped")
	return err
}

// Handle runs one delivery of job. Only one delivery per transcript runs at a
// time; a duplicate that finds the lock held is dropped.
func (w *NoteWorker) Handle(ctx context.Context, job *entities.NoteJob) {
	logger := w.logger.With().
		Str("job_id", job.ID).
		Str("transcript_id", job.TranscriptID).
		Int("attempt", job.Attempt).
		Logger()

	lockKey := providers.TranscriptLockKey(job.TranscriptID)
	token, acquired, err := w.queue.AcquireLock(ctx, lockKey, w.lockTTL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to take transcript lock")
		w.redeliver(ctx, logger, job)
		return
	}
	if !acquired {
		logger.Info().Msg("transcript already in flight, skipping duplicate delivery")
		return
	}
	defer func() {
		if err := w.queue.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			logger.Warn().Err(err).Msg("failed to release transcript lock")
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	if _, err := w.processor.Process(jobCtx, job); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) || apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			logger.Warn().Err(err).Msg("dropping note job that cannot succeed")
			return
		}
		w.redeliver(ctx, logger, job)
		return
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("note job completed")
}

func (w *NoteWorker) redeliver(ctx context.Context, logger zerolog.Logger, job *entities.NoteJob) {
	if job.Attempt+1 >= w.maxDeliveries {
		logger.Error().Int("max_deliveries", w.maxDeliveries).Msg("note job exhausted its deliveries")
		return
	}

	next := *job
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	if err := w.queue.Enqueue(context.WithoutCancel(ctx), &next); err != nil {
		logger.Error().Err(err).Msg("failed to redeliver note job")
		return
	}
	logger.Info().Int("next_attempt", next.Attempt).Msg("note job queued for redelivery")
}
