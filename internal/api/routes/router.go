package routes

import (
	"net/http"

	"github.com/attunehealth/theraplan/backend/internal/api/handlers"
	"github.com/attunehealth/theraplan/backend/internal/api/middleware"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	planHandler          *handlers.PlanHandler
	riskHandler          *handlers.RiskHandler
	transcriptionHandler *handlers.TranscriptionHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	planHandler *handlers.PlanHandler,
	riskHandler *handlers.RiskHandler,
	transcriptionHandler *handlers.TranscriptionHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                  http.NewServeMux(),
		planHandler:          planHandler,
		riskHandler:          riskHandler,
		transcriptionHandler: transcriptionHandler,
		metrics:              metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Plan endpoints
	r.mux.HandleFunc("POST /api/sessions/{id}/plan", r.planHandler.GeneratePlan)
	r.mux.HandleFunc("GET /api/sessions/{id}/plan", r.planHandler.GetActivePlan)
	r.mux.HandleFunc("GET /api/sessions/{id}/plan/versions", r.planHandler.GetPlanHistory)
	r.mux.HandleFunc("POST /api/plans/{id}/revisions", r.planHandler.RevisePlan)

	// Risk endpoints
	r.mux.HandleFunc("GET /api/sessions/{id}/risk", r.riskHandler.GetRiskLevel)
	r.mux.HandleFunc("POST /api/sessions/{id}/risk/evaluate", r.riskHandler.EvaluateRisk)

	// Transcript endpoints
	r.mux.HandleFunc("POST /api/sessions/{id}/transcript", r.transcriptionHandler.UploadSessionAudio)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
