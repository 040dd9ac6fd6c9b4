package repositories

import (
	"context"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
)

// SessionRepository persists therapy sessions.
type SessionRepository interface {
	// GetByID retrieves a session by ID
	GetByID(ctx context.Context, id string) (*entities.Session, error)

	// UpdateTranscript stores the finalized transcript for a session
	UpdateTranscript(ctx context.Context, id string, transcript entities.Transcript) error

	// UpdateRiskLevel persists the evaluated risk level onto the session
	UpdateRiskLevel(ctx context.Context, id string, level entities.RiskLevel) error
}
