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

const (
	riskCacheKeyPrefix = "session:risk:"
	riskCacheTTL       = 300
)

// Classify maps a moderation result to an ordinal risk level. Tiers are
// evaluated high to low; the first match wins, which resolves the
// overlap between category sets. Total over all inputs.
func Classify(moderation *entities.ModerationResult) entities.RiskLevel {
	if moderation == nil {
		return entities.RiskNone
	}

	var maxScore float64
	for _, score := range moderation.Scores {
		if score > maxScore {
			maxScore = score
		}
	}

	switch {
	case moderation.Categories[entities.CategorySelfHarmIntent],
		moderation.Categories[entities.CategorySelfHarmInstructions],
		maxScore > 0.7:
		return entities.RiskHigh
	case moderation.Categories[entities.CategorySelfHarm],
		moderation.Categories[entities.CategoryViolence],
		moderation.Categories[entities.CategoryViolenceGraphic],
		maxScore > 0.4:
		return entities.RiskMedium
	case moderation.Flagged, maxScore > 0.2:
		return entities.RiskLow
	default:
		return entities.RiskNone
	}
}

// RiskService screens session and plan content for safety risk.
type RiskService struct {
	moderation providers.ModerationProvider
	sessions   repositories.SessionRepository
	cache      providers.CacheProvider
	bus        providers.EventBus
}

// NewRiskService creates a new risk service. cache and bus are optional.
func NewRiskService(
	moderation providers.ModerationProvider,
	sessions repositories.SessionRepository,
	cache providers.CacheProvider,
	bus providers.EventBus,
) *RiskService {
	return &RiskService{
		moderation: moderation,
		sessions:   sessions,
		cache:      cache,
		bus:        bus,
	}
}

// EvaluateContentRisk runs one moderation call on the text and
// classifies the result. Moderation failures propagate immediately;
// there is no retry.
func (s *RiskService) EvaluateContentRisk(ctx context.Context, text string) (entities.RiskLevel, error) {
	moderation, err := s.moderation.Moderate(ctx, text)
	if err != nil {
		return entities.RiskNone, err
	}
	return Classify(moderation), nil
}

// EvaluateSessionRisk evaluates the session transcript and persists the
// resulting risk level onto the session record.
func (s *RiskService) EvaluateSessionRisk(ctx context.Context, sessionID string) (entities.RiskLevel, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return entities.RiskNone, err
	}
	if session.Transcript.IsEmpty() {
		return entities.RiskNone, apperrors.NewValidationError("session has no transcript")
	}

	level, err := s.EvaluateContentRisk(ctx, session.Transcript.Text())
	if err != nil {
		return entities.RiskNone, err
	}

	if err := s.sessions.UpdateRiskLevel(ctx, sessionID, level); err != nil {
		return entities.RiskNone, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, riskCacheKeyPrefix+sessionID, []byte(level), riskCacheTTL); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to cache risk level")
		}
	}

	s.publishRiskEvent(ctx, sessionID, level)

	return level, nil
}

// EvaluatePlanRisk screens freshly generated plan text without
// persisting anything. The orchestrator dispatches it detached from the
// request: its failure is logged, never surfaced, and never blocks plan
// creation.
func (s *RiskService) EvaluatePlanRisk(ctx context.Context, sessionID, planText string) (entities.RiskLevel, error) {
	level, err := s.EvaluateContentRisk(ctx, planText)
	if err != nil {
		return entities.RiskNone, err
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Info().
		Str("session_id", sessionID).
		Str("risk_level", string(level)).
		Msg("plan content risk evaluated")

	s.publishRiskEvent(ctx, sessionID, level)

	return level, nil
}

// GetRiskLevel returns the session's last evaluated risk level, served
// from cache when possible.
func (s *RiskService) GetRiskLevel(ctx context.Context, sessionID string) (entities.RiskLevel, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, riskCacheKeyPrefix+sessionID); err == nil && len(cached) > 0 {
			return entities.RiskLevel(cached), nil
		}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return entities.RiskNone, err
	}

	level := session.RiskLevel
	if level == "" {
		level = entities.RiskNone
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, riskCacheKeyPrefix+sessionID, []byte(level), riskCacheTTL); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to cache risk level")
		}
	}

	return level, nil
}

// publishRiskEvent is best-effort: subscribers are audit followers, not
// part of the evaluation contract.
func (s *RiskService) publishRiskEvent(ctx context.Context, sessionID string, level entities.RiskLevel) {
	if s.bus == nil {
		return
	}

	event := &entities.PlanEvent{
		ID:        uuid.New().String(),
		Type:      entities.EventRiskEvaluated,
		SessionID: sessionID,
		RiskLevel: level,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, events.PlanEventsChannel, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to publish risk event")
	}
}
