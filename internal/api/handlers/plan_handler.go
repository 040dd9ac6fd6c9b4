package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
)

// PlanService defines the plan operations used by the handler.
type PlanService interface {
	GeneratePlan(ctx context.Context, sessionID string) (*entities.PlanVersion, error)
	RevisePlan(ctx context.Context, versionID, therapistPlanText, clientPlanText string, lastUpdatedAt time.Time) (*entities.PlanVersion, error)
	GetActivePlan(ctx context.Context, sessionID string) (*entities.PlanVersion, error)
	GetPlanHistory(ctx context.Context, sessionID string) ([]*entities.PlanVersion, error)
}

// PlanHandler handles treatment plan endpoints.
type PlanHandler struct {
	service PlanService
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(service PlanService) *PlanHandler {
	return &PlanHandler{service: service}
}

// GeneratePlan handles POST /api/sessions/{id}/plan
func (h *PlanHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	version, err := h.service.GeneratePlan(r.Context(), sessionID)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("plan generation failed")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, version)
}

// GetActivePlan handles GET /api/sessions/{id}/plan
func (h *PlanHandler) GetActivePlan(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	version, err := h.service.GetActivePlan(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, version)
}

// GetPlanHistory handles GET /api/sessions/{id}/plan/versions
func (h *PlanHandler) GetPlanHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	versions, err := h.service.GetPlanHistory(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

type revisePlanRequest struct {
	TherapistPlanText string    `json:"therapist_plan_text"`
	ClientPlanText    string    `json:"client_plan_text"`
	LastUpdatedAt     time.Time `json:"last_updated_at"`
}

// RevisePlan handles POST /api/plans/{id}/revisions
func (h *PlanHandler) RevisePlan(w http.ResponseWriter, r *http.Request) {
	versionID := r.PathValue("id")
	if versionID == "" {
		respondWithError(w, http.StatusBadRequest, "plan version id is required")
		return
	}

	var payload revisePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.LastUpdatedAt.IsZero() {
		respondWithError(w, http.StatusBadRequest, "last_updated_at is required")
		return
	}

	version, err := h.service.RevisePlan(r.Context(), versionID, payload.TherapistPlanText, payload.ClientPlanText, payload.LastUpdatedAt)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, version)
}
