package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

type moderationCategoryResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

type moderationEnvelope struct {
	Results []moderationCategoryResult `json:"results"`
}

// Moderate classifies text against the fixed moderation category set.
// Failures are wrapped as moderation errors; the caller decides whether
// they are fatal (session screening) or logged only (plan screening).
func (c *Client) Moderate(ctx context.Context, text string) (*entities.ModerationResult, error) {
	payload := map[string]interface{}{
		"model": c.moderationModel,
		"input": text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewModerationError("failed to encode moderation request", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, "/moderations", "application/json", bytes.NewReader(body))
	if err != nil {
		recordAIMetric(ctx, c.moderationModel, "moderation", 0, time.Since(start), err)
		return nil, apperrors.NewModerationError("moderation request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "moderation"); err != nil {
		recordAIMetric(ctx, c.moderationModel, "moderation", resp.StatusCode, time.Since(start), err)
		return nil, apperrors.NewModerationError("moderation request rejected", err)
	}

	var envelope moderationEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordAIMetric(ctx, c.moderationModel, "moderation", resp.StatusCode, time.Since(start), err)
		return nil, apperrors.NewModerationError("failed to decode moderation response", err)
	}
	if len(envelope.Results) == 0 {
		err := apperrors.NewModerationError("moderation response has no results", nil)
		recordAIMetric(ctx, c.moderationModel, "moderation", resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	recordAIMetric(ctx, c.moderationModel, "moderation", resp.StatusCode, time.Since(start), nil)

	raw := envelope.Results[0]
	result := &entities.ModerationResult{
		Flagged:    raw.Flagged,
		Categories: make(map[entities.ModerationCategory]bool, len(entities.ModerationCategories)),
		Scores:     make(map[entities.ModerationCategory]float64, len(entities.ModerationCategories)),
	}
	for _, category := range entities.ModerationCategories {
		result.Categories[category] = raw.Categories[string(category)]
		result.Scores[category] = raw.CategoryScores[string(category)]
	}

	return result, nil
}
