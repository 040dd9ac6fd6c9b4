package handlers

import (
	"context"
	"net/http"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
)

// RiskService defines the risk operations used by the handler.
type RiskService interface {
	EvaluateSessionRisk(ctx context.Context, sessionID string) (entities.RiskLevel, error)
	GetRiskLevel(ctx context.Context, sessionID string) (entities.RiskLevel, error)
}

// RiskHandler handles session risk endpoints.
type RiskHandler struct {
	service RiskService
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(service RiskService) *RiskHandler {
	return &RiskHandler{service: service}
}

// GetRiskLevel handles GET /api/sessions/{id}/risk
func (h *RiskHandler) GetRiskLevel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	level, err := h.service.GetRiskLevel(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"risk_level": string(level),
	})
}

// EvaluateRisk handles POST /api/sessions/{id}/risk/evaluate
func (h *RiskHandler) EvaluateRisk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	level, err := h.service.EvaluateSessionRisk(r.Context(), sessionID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"risk_level": string(level),
	})
}
