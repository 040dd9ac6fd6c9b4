package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/attunehealth/theraplan/backend/internal/adapters/events"
	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	"github.com/attunehealth/theraplan/backend/internal/domain/repositories"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

// planRiskScreener screens generated plan text without blocking the
// caller. Satisfied by RiskService.
type planRiskScreener interface {
	EvaluatePlanRisk(ctx context.Context, sessionID, planText string) (entities.RiskLevel, error)
}

// PlanService runs the full generation pipeline for a session and owns
// the version lifecycle. Plan and summary generation fan out
// concurrently and join before anything is persisted: a failure of any
// artifact fails the whole request and nothing is versioned.
type PlanService struct {
	sessions  repositories.SessionRepository
	versions  repositories.PlanVersionRepository
	plans     *PlanGenerationService
	summaries *SummaryService
	risk      planRiskScreener
	bus       providers.EventBus
}

// NewPlanService creates a new plan service. risk and bus are optional.
func NewPlanService(
	sessions repositories.SessionRepository,
	versions repositories.PlanVersionRepository,
	plans *PlanGenerationService,
	summaries *SummaryService,
	risk planRiskScreener,
	bus providers.EventBus,
) *PlanService {
	return &PlanService{
		sessions:  sessions,
		versions:  versions,
		plans:     plans,
		summaries: summaries,
		risk:      risk,
		bus:       bus,
	}
}

type planPairResult struct {
	therapistPlan *entities.TherapistPlan
	clientPlan    *entities.ClientPlan
	err           error
}

type summariesResult struct {
	summaries *entities.SessionSummaries
	err       error
}

// GeneratePlan runs the generation pipeline for the session's transcript
// and persists the four artifacts as a new plan version. The therapist
// plan and the derived client plan run sequentially; the summary pair
// runs concurrently with them. Risk screening of the therapist plan text
// is dispatched detached and never delays or fails the response.
func (s *PlanService) GeneratePlan(ctx context.Context, sessionID string) (*entities.PlanVersion, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Transcript.IsEmpty() {
		return nil, apperrors.NewValidationError("session has no transcript")
	}

	planCh := make(chan planPairResult, 1)
	summaryCh := make(chan summariesResult, 1)

	go func() {
		therapistPlan, err := s.plans.GenerateTherapistPlan(ctx, session.Transcript)
		if err != nil {
			planCh <- planPairResult{err: err}
			return
		}
		clientPlan, err := s.plans.GenerateClientPlan(ctx, therapistPlan)
		planCh <- planPairResult{therapistPlan: therapistPlan, clientPlan: clientPlan, err: err}
	}()
	go func() {
		summaries, err := s.summaries.GenerateSessionSummary(ctx, session.Transcript, session.SessionDate)
		summaryCh <- summariesResult{summaries: summaries, err: err}
	}()

	planPair := <-planCh
	summaryPair := <-summaryCh

	if planPair.err != nil {
		return nil, planPair.err
	}
	if summaryPair.err != nil {
		return nil, summaryPair.err
	}

	therapistPlanText, err := planPair.therapistPlan.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to serialize therapist plan", err)
	}
	clientPlanText, err := planPair.clientPlan.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to serialize client plan", err)
	}
	therapistSummaryText, err := summaryPair.summaries.Therapist.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to serialize therapist summary", err)
	}
	clientSummaryText, err := summaryPair.summaries.Client.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to serialize client summary", err)
	}

	s.screenPlanRisk(ctx, sessionID, therapistPlanText)

	version, err := s.versions.CreateVersion(ctx, sessionID, session.ClientID, session.TherapistID, entities.PlanArtifacts{
		TherapistPlanText:    therapistPlanText,
		ClientPlanText:       clientPlanText,
		TherapistSummaryText: therapistSummaryText,
		ClientSummaryText:    clientSummaryText,
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("session_id", sessionID).
		Str("version_id", version.ID).
		Int("version_number", version.VersionNumber).
		Msg("plan version created")

	s.publishVersionEvent(ctx, version)

	return version, nil
}

// RevisePlan persists a therapist's hand edit of the plan text as a new
// version superseding the referenced one. lastUpdatedAt is the creation
// time of the version the therapist was looking at; a newer version
// created since then surfaces as a conflict.
func (s *PlanService) RevisePlan(ctx context.Context, versionID, therapistPlanText, clientPlanText string, lastUpdatedAt time.Time) (*entities.PlanVersion, error) {
	if therapistPlanText == "" && clientPlanText == "" {
		return nil, apperrors.NewValidationError("revision requires plan text")
	}

	version, err := s.versions.ReviseVersion(ctx, versionID, therapistPlanText, clientPlanText, lastUpdatedAt)
	if err != nil {
		return nil, err
	}

	s.screenPlanRisk(ctx, version.SessionID, version.TherapistPlanText)
	s.publishVersionEvent(ctx, version)

	return version, nil
}

// GetActivePlan returns the session's current active plan version.
func (s *PlanService) GetActivePlan(ctx context.Context, sessionID string) (*entities.PlanVersion, error) {
	return s.versions.GetActiveVersion(ctx, sessionID)
}

// GetPlanHistory returns every version of the session's plan, newest
// first.
func (s *PlanService) GetPlanHistory(ctx context.Context, sessionID string) ([]*entities.PlanVersion, error) {
	return s.versions.ListBySession(ctx, sessionID)
}

// screenPlanRisk dispatches risk evaluation of plan text detached from
// the request. Its failure is logged and never propagates back; the
// detached context survives the caller's cancellation.
func (s *PlanService) screenPlanRisk(ctx context.Context, sessionID, planText string) {
	if s.risk == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.risk.EvaluatePlanRisk(detached, sessionID, planText); err != nil {
			observability.LoggerFromContext(detached).Warn().
				Err(err).
				Str("session_id", sessionID).
				Msg("plan risk evaluation failed")
		}
	}()
}

func (s *PlanService) publishVersionEvent(ctx context.Context, version *entities.PlanVersion) {
	if s.bus == nil {
		return
	}

	event := &entities.PlanEvent{
		ID:        uuid.New().String(),
		Type:      entities.EventPlanVersionCreated,
		SessionID: version.SessionID,
		VersionID: version.ID,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, events.PlanEventsChannel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("session_id", version.SessionID).
			Msg("failed to publish plan version event")
	}
}
