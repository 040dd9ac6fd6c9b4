package entities

import (
	"encoding/json"
	"time"
)

// TherapistPlan is the clinical treatment plan. All eight keys are
// mandatory in generated payloads; empty values are valid, absent keys
// are not.
type TherapistPlan struct {
	PresentingConcerns  []string `json:"presenting_concerns"`
	ClinicalImpressions string   `json:"clinical_impressions"`
	ShortTermGoals      []string `json:"short_term_goals"`
	LongTermGoals       []string `json:"long_term_goals"`
	InterventionsUsed   []string `json:"interventions_used"`
	Homework            []string `json:"homework"`
	Strengths           []string `json:"strengths"`
	Risks               []string `json:"risks"`
}

// TherapistPlanFields are the required keys of a generated therapist plan.
var TherapistPlanFields = []string{
	"presenting_concerns",
	"clinical_impressions",
	"short_term_goals",
	"long_term_goals",
	"interventions_used",
	"homework",
	"strengths",
	"risks",
}

// ClientPlan is the client-facing plan derived from a TherapistPlan.
// It carries no risk information: client-facing artifacts never surface
// risks or clinical impressions.
type ClientPlan struct {
	YourProgress        string   `json:"your_progress"`
	GoalsWeAreWorkingOn []string `json:"goals_we_are_working_on"`
	ThingsToTry         []string `json:"things_to_try"`
	YourStrengths       []string `json:"your_strengths"`
}

// ClientPlanFields are the required keys of a generated client plan.
var ClientPlanFields = []string{
	"your_progress",
	"goals_we_are_working_on",
	"things_to_try",
	"your_strengths",
}

// JSON serializes the plan for storage and for downstream prompts.
func (p *TherapistPlan) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON serializes the plan for storage.
func (p *ClientPlan) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PlanArtifacts bundles the four serialized generation outputs handed to
// the version store.
type PlanArtifacts struct {
	TherapistPlanText    string
	ClientPlanText       string
	TherapistSummaryText string
	ClientSummaryText    string
}

// PlanVersion is one immutable revision of a session's plan. Exactly one
// version per session is active at any observable instant; versions are
// never mutated except for IsActive transitioning true to false, and
// never deleted.
type PlanVersion struct {
	ID                   string    `json:"id" db:"id"`
	SessionID            string    `json:"session_id" db:"session_id"`
	ClientID             string    `json:"client_id" db:"client_id"`
	TherapistID          string    `json:"therapist_id" db:"therapist_id"`
	VersionNumber        int       `json:"version_number" db:"version_number"`
	TherapistPlanText    string    `json:"therapist_plan_text" db:"therapist_plan_text"`
	ClientPlanText       string    `json:"client_plan_text" db:"client_plan_text"`
	TherapistSummaryText string    `json:"therapist_summary_text" db:"therapist_summary_text"`
	ClientSummaryText    string    `json:"client_summary_text" db:"client_summary_text"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}
