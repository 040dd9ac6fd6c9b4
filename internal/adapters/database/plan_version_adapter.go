package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/repositories"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

// PlanVersionAdapter implements the PlanVersionRepository interface.
//
// Both write paths run inside one transaction and take a row lock on the
// session before touching plan_versions, so concurrent writers for the
// same session serialize: version numbers never collide and readers
// never observe a session with zero or two active versions.
type PlanVersionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPlanVersionAdapter creates a new plan version adapter
func NewPlanVersionAdapter(client *postgres.Client) repositories.PlanVersionRepository {
	return &PlanVersionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var planVersionColumns = []interface{}{
	"id", "session_id", "client_id", "therapist_id", "version_number",
	"therapist_plan_text", "client_plan_text",
	"therapist_summary_text", "client_summary_text",
	"is_active", "created_at",
}

// CreateVersion inserts a new active version numbered max(existing)+1
// and deactivates all prior versions of the session atomically.
func (a *PlanVersionAdapter) CreateVersion(ctx context.Context, sessionID, clientID, therapistID string, artifacts entities.PlanArtifacts) (*entities.PlanVersion, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := lockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	var nextVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM plan_versions WHERE session_id = $1`,
		sessionID,
	).Scan(&nextVersion)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to compute next version number", err)
	}

	version := &entities.PlanVersion{
		ID:                   uuid.New().String(),
		SessionID:            sessionID,
		ClientID:             clientID,
		TherapistID:          therapistID,
		VersionNumber:        nextVersion,
		TherapistPlanText:    artifacts.TherapistPlanText,
		ClientPlanText:       artifacts.ClientPlanText,
		TherapistSummaryText: artifacts.TherapistSummaryText,
		ClientSummaryText:    artifacts.ClientSummaryText,
		IsActive:             true,
		CreatedAt:            time.Now().UTC(),
	}

	if err := supersede(ctx, tx, version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit version", err)
	}

	return version, nil
}

// ReviseVersion supersedes the referenced version with hand-edited plan
// text. The optimistic check compares the caller's expected timestamp
// against the latest version created for the session, inside the same
// transaction that performs the supersession, so of N racing revisions
// exactly one wins.
func (a *PlanVersionAdapter) ReviseVersion(ctx context.Context, versionID, therapistPlanText, clientPlanText string, expectedNotOlderThan time.Time) (*entities.PlanVersion, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	existing, err := scanVersion(tx.QueryRowContext(ctx,
		`SELECT id, session_id, client_id, therapist_id, version_number,
		        therapist_plan_text, client_plan_text,
		        therapist_summary_text, client_summary_text,
		        is_active, created_at
		 FROM plan_versions WHERE id = $1`,
		versionID,
	))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("plan version with id %s not found", versionID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load plan version", err)
	}

	if err := lockSession(ctx, tx, existing.SessionID); err != nil {
		return nil, err
	}

	var latestCreatedAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM plan_versions WHERE session_id = $1`,
		existing.SessionID,
	).Scan(&latestCreatedAt)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load latest version timestamp", err)
	}

	if expectedNotOlderThan.Before(latestCreatedAt) {
		return nil, apperrors.NewConflictError("a newer plan version exists, please refresh and retry")
	}

	version := &entities.PlanVersion{
		ID:                   uuid.New().String(),
		SessionID:            existing.SessionID,
		ClientID:             existing.ClientID,
		TherapistID:          existing.TherapistID,
		VersionNumber:        existing.VersionNumber + 1,
		TherapistPlanText:    therapistPlanText,
		ClientPlanText:       clientPlanText,
		TherapistSummaryText: existing.TherapistSummaryText,
		ClientSummaryText:    existing.ClientSummaryText,
		IsActive:             true,
		CreatedAt:            time.Now().UTC(),
	}

	if err := supersede(ctx, tx, version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit revision", err)
	}

	return version, nil
}

// lockSession takes a row lock on the session, serializing version
// writers per session without any cross-session contention.
func lockSession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&id)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError(fmt.Sprintf("session with id %s not found", sessionID))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to lock session", err)
	}
	return nil
}

// supersede deactivates every version of the session and inserts the new
// active one. Callers hold the session lock.
func supersede(ctx context.Context, tx *sql.Tx, version *entities.PlanVersion) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE plan_versions SET is_active = false WHERE session_id = $1 AND is_active = true`,
		version.SessionID,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to deactivate prior versions", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO plan_versions
		 (id, session_id, client_id, therapist_id, version_number,
		  therapist_plan_text, client_plan_text,
		  therapist_summary_text, client_summary_text,
		  is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		version.ID, version.SessionID, version.ClientID, version.TherapistID,
		version.VersionNumber, version.TherapistPlanText, version.ClientPlanText,
		version.TherapistSummaryText, version.ClientSummaryText,
		version.IsActive, version.CreatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to insert plan version", err)
	}

	return nil
}

// GetByID retrieves a plan version by ID
func (a *PlanVersionAdapter) GetByID(ctx context.Context, id string) (*entities.PlanVersion, error) {
	query, args, err := a.db.Select(planVersionColumns...).
		From("plan_versions").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	version, err := scanVersion(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("plan version with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get plan version", err)
	}

	return version, nil
}

// GetActiveVersion retrieves the session's single active version
func (a *PlanVersionAdapter) GetActiveVersion(ctx context.Context, sessionID string) (*entities.PlanVersion, error) {
	query, args, err := a.db.Select(planVersionColumns...).
		From("plan_versions").
		Where(goqu.Ex{"session_id": sessionID, "is_active": true}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	version, err := scanVersion(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no active plan version for session %s", sessionID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get active plan version", err)
	}

	return version, nil
}

// ListBySession retrieves all versions of a session, newest first
func (a *PlanVersionAdapter) ListBySession(ctx context.Context, sessionID string) ([]*entities.PlanVersion, error) {
	query, args, err := a.db.Select(planVersionColumns...).
		From("plan_versions").
		Where(goqu.Ex{"session_id": sessionID}).
		Order(goqu.I("version_number").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list plan versions", err)
	}
	defer rows.Close()

	var versions []*entities.PlanVersion
	for rows.Next() {
		version := &entities.PlanVersion{}
		err := rows.Scan(
			&version.ID,
			&version.SessionID,
			&version.ClientID,
			&version.TherapistID,
			&version.VersionNumber,
			&version.TherapistPlanText,
			&version.ClientPlanText,
			&version.TherapistSummaryText,
			&version.ClientSummaryText,
			&version.IsActive,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan plan version", err)
		}
		versions = append(versions, version)
	}

	return versions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (*entities.PlanVersion, error) {
	version := &entities.PlanVersion{}
	err := row.Scan(
		&version.ID,
		&version.SessionID,
		&version.ClientID,
		&version.TherapistID,
		&version.VersionNumber,
		&version.TherapistPlanText,
		&version.ClientPlanText,
		&version.TherapistSummaryText,
		&version.ClientSummaryText,
		&version.IsActive,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return version, nil
}
