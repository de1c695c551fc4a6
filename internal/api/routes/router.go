package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/zatekoja/visitscribe/internal/api/handlers"
	"github.com/zatekoja/visitscribe/internal/api/middleware"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Router wires handlers onto a ServeMux behind the shared middleware chain.
type Router struct {
	mux *http.ServeMux

	notes     *handlers.NoteHandler
	education *handlers.EducationStreamHandler
	budget    *handlers.BudgetHandler

	allowedOrigins []string
	checks         map[string]ReadinessCheck
}

// NewRouter creates a router. checks back GET /health/ready and may be nil.
func NewRouter(
	notes *handlers.NoteHandler,
	education *handlers.EducationStreamHandler,
	budget *handlers.BudgetHandler,
	allowedOrigins []string,
	checks map[string]ReadinessCheck,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		notes:          notes,
		education:      education,
		budget:         budget,
		allowedOrigins: allowedOrigins,
		checks:         checks,
	}
}

// Handler registers every route and returns the wrapped mux.
func (r *Router) Handler() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.mux.HandleFunc("GET /health/ready", r.ready)

	r.mux.HandleFunc("POST /api/transcripts/{id}/notes", r.notes.GenerateNote)
	r.mux.HandleFunc("GET /api/transcripts/{id}/note", r.notes.GetNote)
	r.mux.HandleFunc("POST /api/education/stream", r.education.StreamEducation)
	r.mux.HandleFunc("GET /api/budget", r.budget.GetBudget)

	// Outermost first: CORS, Tracing, Logging.
	var h http.Handler = r.mux
	h = middleware.Logging(h)
	h = middleware.Tracing(r.mux)(h)
	h = middleware.CORS(r.allowedOrigins)(h)
	return h
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := r.checks[name](ctx); err != nil {
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}
	writeStatus(w, status, map[string]any{"status": overall, "checks": results})
}

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
