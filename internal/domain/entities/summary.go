package entities

import "encoding/json"

// TherapistSummary is the clinician-facing session summary.
type TherapistSummary struct {
	SessionOverview    string   `json:"session_overview"`
	KeyTopics          []string `json:"key_topics"`
	Interventions      []string `json:"interventions"`
	ClientResponse     string   `json:"client_response"`
	PlanForNextSession string   `json:"plan_for_next_session"`
}

// TherapistSummaryFields are the required keys of a generated therapist summary.
var TherapistSummaryFields = []string{
	"session_overview",
	"key_topics",
	"interventions",
	"client_response",
	"plan_for_next_session",
}

// ClientSummary is the client-facing session summary.
type ClientSummary struct {
	WhatWeTalkedAbout string   `json:"what_we_talked_about"`
	WhatYouWorkedOn   []string `json:"what_you_worked_on"`
	YourWins          []string `json:"your_wins"`
	GentleReminders   []string `json:"gentle_reminders"`
}

// ClientSummaryFields are the required keys of a generated client summary.
var ClientSummaryFields = []string{
	"what_we_talked_about",
	"what_you_worked_on",
	"your_wins",
	"gentle_reminders",
}

// SessionSummaries joins both summaries produced for one session.
type SessionSummaries struct {
	Therapist *TherapistSummary `json:"therapist"`
	Client    *ClientSummary    `json:"client"`
}

// JSON serializes the summary for storage.
func (s *TherapistSummary) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON serializes the summary for storage.
func (s *ClientSummary) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
