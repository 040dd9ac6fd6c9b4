package services

import (
	"context"
	"fmt"
	"time"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
	"github.com/attunehealth/theraplan/backend/pkg/retry"
	"github.com/attunehealth/theraplan/backend/pkg/schema"
)

const therapistSummarySystemPrompt = `You are a clinical documentation assistant. Summarize a therapy session for the therapist's records. Return ONLY valid JSON with this schema:
{
  "session_overview": string (3-5 sentences, clinical register),
  "key_topics": string[] (topics discussed),
  "interventions": string[] (techniques used in session),
  "client_response": string (how the client engaged and responded),
  "plan_for_next_session": string (focus for the next session)
}
Base every field strictly on the transcript.`

const clientSummarySystemPrompt = `You are summarizing a therapy session for the client to read afterwards. Write warmly and directly to the client as "you", in plain language with no clinical terminology. Return ONLY valid JSON with this schema:
{
  "what_we_talked_about": string (2-3 sentences),
  "what_you_worked_on": string[] (skills or topics practiced),
  "your_wins": string[] (positive moments from the session),
  "gentle_reminders": string[] (things to keep in mind before next time)
}`

// SummaryService produces the therapist and client session summaries.
// The two are independent and run concurrently; if either fails the
// joint operation fails with no partial result.
type SummaryService struct {
	completion providers.CompletionProvider
	retryCfg   retry.Config
}

// NewSummaryService creates a new summary service.
func NewSummaryService(completion providers.CompletionProvider, retryCfg retry.Config) *SummaryService {
	return &SummaryService{
		completion: completion,
		retryCfg:   retryCfg,
	}
}

// GenerateTherapistSummary generates the clinician-facing session summary.
func (s *SummaryService) GenerateTherapistSummary(ctx context.Context, transcript entities.Transcript, sessionDate time.Time) (*entities.TherapistSummary, error) {
	var summary entities.TherapistSummary
	err := retry.DoClassified(ctx, s.retryCfg, func() error {
		raw, err := s.completion.Complete(ctx, providers.CompletionRequest{
			SystemPrompt: therapistSummarySystemPrompt,
			UserContent:  summaryUserContent(transcript, sessionDate),
			JSONMode:     true,
			Temperature:  0.3,
			MaxTokens:    900,
		})
		if err != nil {
			return err
		}
		summary = entities.TherapistSummary{}
		return schema.Decode([]byte(raw), entities.TherapistSummaryFields, &summary)
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("therapist summary generation %w", err)
	}

	return &summary, nil
}

// GenerateClientSummary generates the client-facing session summary.
func (s *SummaryService) GenerateClientSummary(ctx context.Context, transcript entities.Transcript, sessionDate time.Time) (*entities.ClientSummary, error) {
	var summary entities.ClientSummary
	err := retry.DoClassified(ctx, s.retryCfg, func() error {
		raw, err := s.completion.Complete(ctx, providers.CompletionRequest{
			SystemPrompt: clientSummarySystemPrompt,
			UserContent:  summaryUserContent(transcript, sessionDate),
			JSONMode:     true,
			Temperature:  0.4,
			MaxTokens:    700,
		})
		if err != nil {
			return err
		}
		summary = entities.ClientSummary{}
		return schema.Decode([]byte(raw), entities.ClientSummaryFields, &summary)
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("client summary generation %w", err)
	}

	return &summary, nil
}

// GenerateSessionSummary runs both summaries concurrently and returns
// them jointly; a failure of either fails the whole operation.
func (s *SummaryService) GenerateSessionSummary(ctx context.Context, transcript entities.Transcript, sessionDate time.Time) (*entities.SessionSummaries, error) {
	if transcript.IsEmpty() {
		return nil, apperrors.NewValidationError("transcript is empty")
	}

	type therapistResult struct {
		summary *entities.TherapistSummary
		err     error
	}
	type clientResult struct {
		summary *entities.ClientSummary
		err     error
	}

	therapistCh := make(chan therapistResult, 1)
	clientCh := make(chan clientResult, 1)

	go func() {
		summary, err := s.GenerateTherapistSummary(ctx, transcript, sessionDate)
		therapistCh <- therapistResult{summary: summary, err: err}
	}()
	go func() {
		summary, err := s.GenerateClientSummary(ctx, transcript, sessionDate)
		clientCh <- clientResult{summary: summary, err: err}
	}()

	therapist := <-therapistCh
	client := <-clientCh

	if therapist.err != nil {
		return nil, therapist.err
	}
	if client.err != nil {
		return nil, client.err
	}

	return &entities.SessionSummaries{
		Therapist: therapist.summary,
		Client:    client.summary,
	}, nil
}

func summaryUserContent(transcript entities.Transcript, sessionDate time.Time) string {
	return fmt.Sprintf("Session date: %s\n\nTranscript:\n%s", sessionDate.Format("January 2, 2006"), transcript.PromptText())
}
