package repositories

import (
	"context"
	"time"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
)

// PlanVersionRepository persists plan versions and enforces the
// single-active-version invariant per session. Create and Revise run the
// deactivate-then-insert sequence atomically; concurrent writers for the
// same session serialize, writers for different sessions do not contend.
type PlanVersionRepository interface {
	// CreateVersion inserts a new version numbered max(existing)+1 and
	// deactivates every prior version of the session in one transaction.
	CreateVersion(ctx context.Context, sessionID, clientID, therapistID string, artifacts entities.PlanArtifacts) (*entities.PlanVersion, error)

	// ReviseVersion supersedes the referenced version with hand-edited
	// plan text. If expectedNotOlderThan predates the referenced
	// version's creation time, it fails with a conflict error without
	// mutating anything.
	ReviseVersion(ctx context.Context, versionID, therapistPlanText, clientPlanText string, expectedNotOlderThan time.Time) (*entities.PlanVersion, error)

	// GetByID retrieves a version by ID
	GetByID(ctx context.Context, id string) (*entities.PlanVersion, error)

	// GetActiveVersion retrieves the session's single active version
	GetActiveVersion(ctx context.Context, sessionID string) (*entities.PlanVersion, error)

	// ListBySession retrieves all versions of a session, newest first
	ListBySession(ctx context.Context, sessionID string) ([]*entities.PlanVersion, error)
}
