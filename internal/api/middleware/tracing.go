package middleware

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
)

// Tracing opens a server span per request and records the request counter and
// latency histogram. Spans and metrics are labelled with the mux pattern,
// never the raw path, so transcript ids do not explode cardinality.
func Tracing(mux *http.ServeMux) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			_, route := mux.Handler(r)
			if route == "" {
				route = "unmatched"
			}

			ctx, span := observability.StartSpan(r.Context(), route)
			defer span.End()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			observability.SetSpanAttributes(span,
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", rec.status),
			)
			if rec.status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", rec.status))
			}
			observability.RecordRequestMetric(ctx, r.Method, route, rec.status, time.Since(start))
		})
	}
}
