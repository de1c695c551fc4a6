package observability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/visitscribe"

// Metrics holds the pipeline metrics
type Metrics struct {
	GatewayRequests  metric.Int64Counter
	GatewayDuration  metric.Float64Histogram
	GatewayErrors    metric.Int64Counter
	GatewayRetries   metric.Int64Counter
	BudgetDenials    metric.Int64Counter
	PipelineOutcomes metric.Int64Counter
	StreamEvents     metric.Int64Counter
	HTTPRequests     metric.Int64Counter
	HTTPDuration     metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
	metricsErr  error
)

// Setup initializes OpenTelemetry trace and metric export plus runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		log.Warn().Err(err).Msg("runtime instrumentation unavailable")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics returns the process-wide pipeline metrics, creating them on first use
func InitMetrics() (*Metrics, error) {
	metricsOnce.Do(func() {
		metrics, metricsErr = newMetrics(otel.Meter(instrumentationName))
	})
	return metrics, metricsErr
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	gatewayRequests, err := meter.Int64Counter(
		"ai.gateway.request.count",
		metric.WithDescription("Number of reasoning API attempts"),
	)
	if err != nil {
		return nil, err
	}

	gatewayDuration, err := meter.Float64Histogram(
		"ai.gateway.request.duration",
		metric.WithDescription("Reasoning API attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	gatewayErrors, err := meter.Int64Counter(
		"ai.gateway.request.errors",
		metric.WithDescription("Number of failed reasoning API attempts"),
	)
	if err != nil {
		return nil, err
	}

	gatewayRetries, err := meter.Int64Counter(
		"ai.gateway.retries",
		metric.WithDescription("Number of reasoning API retries"),
	)
	if err != nil {
		return nil, err
	}

	budgetDenials, err := meter.Int64Counter(
		"ai.budget.denials",
		metric.WithDescription("Number of requests denied by the budget guard"),
	)
	if err != nil {
		return nil, err
	}

	pipelineOutcomes, err := meter.Int64Counter(
		"pipeline.note.outcomes",
		metric.WithDescription("Clinical note pipeline outcomes"),
	)
	if err != nil {
		return nil, err
	}

	streamEvents, err := meter.Int64Counter(
		"stream.relay.events",
		metric.WithDescription("Events forwarded by the streaming relay"),
	)
	if err != nil {
		return nil, err
	}

	httpRequests, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTPRequests:     httpRequests,
		HTTPDuration:     httpDuration,
		GatewayRequests:  gatewayRequests,
		GatewayDuration:  gatewayDuration,
		GatewayErrors:    gatewayErrors,
		GatewayRetries:   gatewayRetries,
		BudgetDenials:    budgetDenials,
		PipelineOutcomes: pipelineOutcomes,
		StreamEvents:     streamEvents,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordGatewayAttempt records one reasoning API attempt
func RecordGatewayAttempt(ctx context.Context, model string, statusCode int, duration time.Duration, failureClass string) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.GatewayRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.GatewayDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if failureClass != "" {
		attrs = append(attrs, attribute.String("ai.failure_class", failureClass))
		m.GatewayErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordGatewayRetry records a retry decision
func RecordGatewayRetry(ctx context.Context, model, failureClass string) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}
	m.GatewayRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ai.model", model),
		attribute.String("ai.failure_class", failureClass),
	))
}

// RecordBudgetDenial records a budget guard denial
func RecordBudgetDenial(ctx context.Context, reason string) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}
	m.BudgetDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("budget.reason", reason)))
}

// RecordPipelineOutcome records how a note pipeline run ended
func RecordPipelineOutcome(ctx context.Context, outcome string) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}
	m.PipelineOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline.outcome", outcome)))
}

// RecordStreamEvent records one relayed stream event
func RecordStreamEvent(ctx context.Context, eventType string) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}
	m.StreamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("stream.event_type", eventType)))
}

// RecordRequestMetric records one HTTP request
func RecordRequestMetric(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	m, err := InitMetrics()
	if err != nil || m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.HTTPRequests.Add(ctx, 1, attrs)
	m.HTTPDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}
