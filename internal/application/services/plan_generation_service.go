package services

import (
	"context"
	"fmt"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
	"github.com/attunehealth/theraplan/backend/pkg/retry"
	"github.com/attunehealth/theraplan/backend/pkg/schema"
)

const therapistPlanSystemPrompt = `You are a clinical documentation assistant for licensed therapists. Given a therapy session transcript, produce a treatment plan. Return ONLY valid JSON with this schema:
{
  "presenting_concerns": string[] (concerns the client raised this session),
  "clinical_impressions": string (2-4 sentences, clinical register),
  "short_term_goals": string[] (goals for the next 1-4 weeks),
  "long_term_goals": string[] (goals for the course of treatment),
  "interventions_used": string[] (techniques applied this session),
  "homework": string[] (between-session assignments),
  "strengths": string[] (client strengths observed),
  "risks": string[] (safety concerns, risk factors; empty if none)
}
Base every field strictly on the transcript. Do not invent diagnoses. Use empty arrays where nothing applies.`

const clientPlanSystemPrompt = `You are rewriting a clinical treatment plan for the client to read. Simplify the language, remove ALL clinical terminology, and write warmly and directly to the client as "you". NEVER include risk information, safety concerns, or clinical impressions of any kind. Return ONLY valid JSON with this schema:
{
  "your_progress": string (1-3 encouraging sentences about progress),
  "goals_we_are_working_on": string[] (plain-language goals),
  "things_to_try": string[] (practical suggestions between sessions),
  "your_strengths": string[] (strengths in plain language)
}`

// PlanGenerationService produces the therapist plan and, from it, the
// derived client-facing plan. Every completion call goes through the
// retry policy: transport failures are retried with backoff, parse and
// schema failures surface immediately.
type PlanGenerationService struct {
	completion providers.CompletionProvider
	retryCfg   retry.Config
}

// NewPlanGenerationService creates a new plan generation service.
func NewPlanGenerationService(completion providers.CompletionProvider, retryCfg retry.Config) *PlanGenerationService {
	return &PlanGenerationService{
		completion: completion,
		retryCfg:   retryCfg,
	}
}

// GenerateTherapistPlan generates the clinical treatment plan from a
// session transcript.
func (s *PlanGenerationService) GenerateTherapistPlan(ctx context.Context, transcript entities.Transcript) (*entities.TherapistPlan, error) {
	if transcript.IsEmpty() {
		return nil, apperrors.NewValidationError("transcript is empty")
	}

	var plan entities.TherapistPlan
	err := retry.DoClassified(ctx, s.retryCfg, func() error {
		raw, err := s.completion.Complete(ctx, providers.CompletionRequest{
			SystemPrompt: therapistPlanSystemPrompt,
			UserContent:  transcript.PromptText(),
			JSONMode:     true,
			Temperature:  0.3,
			MaxTokens:    1500,
		})
		if err != nil {
			return err
		}
		plan = entities.TherapistPlan{}
		return schema.Decode([]byte(raw), entities.TherapistPlanFields, &plan)
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("therapist plan generation %w", err)
	}

	return &plan, nil
}

// GenerateClientPlan derives the client-facing plan from a therapist
// plan. The serialized therapist plan is the sole input; the required
// field set guarantees the output shape, and the prompt contract keeps
// risks and clinical impressions out of it.
func (s *PlanGenerationService) GenerateClientPlan(ctx context.Context, therapistPlan *entities.TherapistPlan) (*entities.ClientPlan, error) {
	if therapistPlan == nil {
		return nil, apperrors.NewValidationError("therapist plan is required")
	}

	serialized, err := therapistPlan.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to serialize therapist plan", err)
	}

	var plan entities.ClientPlan
	err = retry.DoClassified(ctx, s.retryCfg, func() error {
		raw, err := s.completion.Complete(ctx, providers.CompletionRequest{
			SystemPrompt: clientPlanSystemPrompt,
			UserContent:  serialized,
			JSONMode:     true,
			Temperature:  0.4,
			MaxTokens:    800,
		})
		if err != nil {
			return err
		}
		plan = entities.ClientPlan{}
		return schema.Decode([]byte(raw), entities.ClientPlanFields, &plan)
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("client plan generation %w", err)
	}

	return &plan, nil
}
