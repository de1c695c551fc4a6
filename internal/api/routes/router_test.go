package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/visitscribe/internal/adapters/cache"
	"github.com/zatekoja/visitscribe/internal/adapters/queue"
	"github.com/zatekoja/visitscribe/internal/api/handlers"
	"github.com/zatekoja/visitscribe/internal/api/routes"
	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/pkg/config"
)

func newTestRouter(checks map[string]routes.ReadinessCheck) http.Handler {
	budget := services.NewBudgetGuard(cache.NewMemoryCounterStore(), config.BudgetConfig{GlobalDailyLimit: 10, PerUserDailyLimit: 5})
	defaults := services.RequestDefaults{Tier: entities.TierBasic, Effort: entities.EffortMedium}

	return routes.NewRouter(
		handlers.NewNoteHandler(budget, queue.NewMemoryJobQueue(4), nil, defaults),
		handlers.NewEducationStreamHandler(services.NewEducationService(nil, services.NewTierPolicy("")), services.NewStreamingRelay(), budget, defaults),
		handlers.NewBudgetHandler(budget),
		[]string{"https://clinic.example"},
		checks,
	).Handler()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := serve(newTestRouter(nil), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_Readiness(t *testing.T) {
	h := newTestRouter(map[string]routes.ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := serve(h, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"postgres":"ok","redis":"unavailable"}}`, rec.Body.String())

	rec = serve(newTestRouter(nil), http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{}}`, rec.Body.String())
}

func TestRouter_RoutesAreMounted(t *testing.T) {
	h := newTestRouter(nil)

	assert.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/api/transcripts/t-1/notes").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/budget").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/unknown").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/api/transcripts/t-1/notes").Code)
}

func TestRouter_PreflightShortCircuits(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/education/stream", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestRouter(nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
