package providers

import (
	"context"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
)

// ModerationProvider is the content moderation capability.
type ModerationProvider interface {
	Moderate(ctx context.Context, text string) (*entities.ModerationResult, error)
}
