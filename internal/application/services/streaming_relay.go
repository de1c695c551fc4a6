package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
)

// StreamInterruptedMessage is the client-facing text of a terminal error event.
const StreamInterruptedMessage = "Generation was interrupted. Please try again."

// StreamErrorPayload is the data of the terminal error event.
type StreamErrorPayload struct {
	Message      string `json:"message"`
	FailureClass string `json:"failure_class,omitempty"`
}

// RelayResult summarises one relayed stream.
type RelayResult struct {
	Events   int
	Failed   bool
	Detached bool
}

// StreamingRelay forwards gateway stream events to a client sink.
type StreamingRelay struct {
	logger zerolog.Logger
}

// NewStreamingRelay creates a relay.
func NewStreamingRelay() *StreamingRelay {
	return &StreamingRelay{
		logger: log.Logger.With().Str("component", "streaming_relay").Logger(),
	}
}

// WithLogger returns a copy of the relay logging to logger.
func (r *StreamingRelay) WithLogger(logger zerolog.Logger) *StreamingRelay {
	clone := *r
	clone.logger = logger
	return &clone
}

// Relay emits every event of events to sink in order and always finishes with
// the end sentinel. A terminal error becomes a single error event. Sink failures
// do not stop the relay: the upstream call is drained to completion either way.
// ctx is used for telemetry only; callers pass a context that outlives the client.
func (r *StreamingRelay) Relay(ctx context.Context, events <-chan entities.StreamEvent, sink providers.StreamSink) RelayResult {
	var result RelayResult

	emit := func(eventType string, data any) {
		err := sink.Emit(eventType, data)
		if err == nil {
			return
		}
		if !result.Detached {
			result.Detached = true
			if errors.Is(err, providers.ErrSinkDetached) {
				r.logger.Info().Msg("client detached, draining stream in background")
			} else {
				r.logger.Warn().Err(err).Msg("stream sink write failed, draining stream in background")
			}
		}
	}

	for ev := range events {
		if result.Failed {
			// Nothing follows a terminal error.
			continue
		}
		if ev.IsTerminalError() {
			result.Failed = true
			class := string(providers.FailureKindOf(ev.Err))
			r.logger.Warn().
				Err(ev.Err).
				Str("failure_class", class).
				Int("events_sent", result.Events).
				Msg("stream ended with error")
			observability.RecordStreamEvent(ctx, string(entities.StreamEventError))
			emit(string(entities.StreamEventError), StreamErrorPayload{
				Message:      StreamInterruptedMessage,
				FailureClass: class,
			})
			continue
		}

		result.Events++
		observability.RecordStreamEvent(ctx, string(ev.Type))
		emit(string(ev.Type), ev)
	}

	observability.RecordStreamEvent(ctx, string(entities.StreamEventEnd))
	emit(string(entities.StreamEventEnd), map[string]bool{"done": true})

	r.logger.Debug().
		Int("events", result.Events).
		Bool("failed", result.Failed).
		Bool("detached", result.Detached).
		Msg("stream relay finished")
	return result
}
