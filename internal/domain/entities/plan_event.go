package entities

import "time"

// PlanEventType identifies a plan lifecycle event.
type PlanEventType string

const (
	EventPlanVersionCreated PlanEventType = "plan.version.created"
	EventRiskEvaluated      PlanEventType = "risk.evaluated"
)

// PlanEvent is published on the event bus when a plan version is created
// or content risk has been evaluated. Consumers are out-of-process
// followers (audit trail, notifications); publishing is best-effort.
type PlanEvent struct {
	ID        string        `json:"id"`
	Type      PlanEventType `json:"type"`
	SessionID string        `json:"session_id"`
	VersionID string        `json:"version_id,omitempty"`
	RiskLevel RiskLevel     `json:"risk_level,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
