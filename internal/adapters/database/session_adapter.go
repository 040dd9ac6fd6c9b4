package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/repositories"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

// SessionAdapter implements the SessionRepository interface
type SessionAdapter struct {
	db *sqlx.DB
}

// NewSessionAdapter creates a new session adapter
func NewSessionAdapter(db *sqlx.DB) repositories.SessionRepository {
	return &SessionAdapter{db: db}
}

type sessionRow struct {
	ID          string         `db:"id"`
	ClientID    string         `db:"client_id"`
	TherapistID string         `db:"therapist_id"`
	SessionDate time.Time      `db:"session_date"`
	Transcript  []byte         `db:"transcript"`
	RiskLevel   sql.NullString `db:"risk_level"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// GetByID retrieves a session by ID
func (a *SessionAdapter) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	var row sessionRow
	query := `SELECT id, client_id, therapist_id, session_date, transcript, risk_level, created_at, updated_at
	          FROM sessions WHERE id = $1`
	err := a.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get session", err)
	}

	session := &entities.Session{
		ID:          row.ID,
		ClientID:    row.ClientID,
		TherapistID: row.TherapistID,
		SessionDate: row.SessionDate,
		RiskLevel:   entities.RiskLevel(row.RiskLevel.String),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.Transcript) > 0 {
		if err := json.Unmarshal(row.Transcript, &session.Transcript); err != nil {
			return nil, apperrors.NewInternalError("failed to decode session transcript", err)
		}
	}

	return session, nil
}

// UpdateTranscript stores the finalized transcript for a session
func (a *SessionAdapter) UpdateTranscript(ctx context.Context, id string, transcript entities.Transcript) error {
	data, err := json.Marshal(transcript)
	if err != nil {
		return apperrors.NewInternalError("failed to encode transcript", err)
	}

	query := `UPDATE sessions SET transcript = $1, updated_at = $2 WHERE id = $3`
	result, err := a.db.ExecContext(ctx, query, data, time.Now().UTC(), id)
	if err != nil {
		return apperrors.NewInternalError("failed to update transcript", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("session with id %s not found", id))
	}

	return nil
}

// UpdateRiskLevel persists the evaluated risk level onto the session
func (a *SessionAdapter) UpdateRiskLevel(ctx context.Context, id string, level entities.RiskLevel) error {
	query := `UPDATE sessions SET risk_level = $1, updated_at = $2 WHERE id = $3`
	result, err := a.db.ExecContext(ctx, query, string(level), time.Now().UTC(), id)
	if err != nil {
		return apperrors.NewInternalError("failed to update risk level", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("session with id %s not found", id))
	}

	return nil
}
