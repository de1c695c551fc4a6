package observability

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// LogOptions configures the process logger.
type LogOptions struct {
	Service string
	Env     string
	// Level is a zerolog level name; unknown or empty means info.
	Level string
}

// InitLogger replaces the global zerolog logger. Development gets the console
// writer, everything else JSON lines with caller info.
func InitLogger(out io.Writer, opts LogOptions) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if opts.Env == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Str("service", opts.Service).
			Logger()
		return
	}

	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", opts.Service).
		Logger()
}

// WithTrace decorates base with the trace and span ids found in ctx.
func WithTrace(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return base
	}
	return base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
}
