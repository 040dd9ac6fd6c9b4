package entities

import "time"

// Session represents one recorded therapy session. The transcript is
// immutable once finalized; only the risk level is updated afterwards.
type Session struct {
	ID          string     `json:"id" db:"id"`
	ClientID    string     `json:"client_id" db:"client_id"`
	TherapistID string     `json:"therapist_id" db:"therapist_id"`
	SessionDate time.Time  `json:"session_date" db:"session_date"`
	Transcript  Transcript `json:"transcript"`
	RiskLevel   RiskLevel  `json:"risk_level" db:"risk_level"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
