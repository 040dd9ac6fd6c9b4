package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

func TestGenerateTherapistPlan_ParsesValidResponse(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: validTherapistPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	plan, err := service.GenerateTherapistPlan(context.Background(), diarizedTranscript())

	require.NoError(t, err)
	assert.Equal(t, []string{"anxiety at work"}, plan.PresentingConcerns)
	assert.Equal(t, "Client presents with generalized anxiety.", plan.ClinicalImpressions)
	assert.Empty(t, plan.Risks)
	assert.Equal(t, 1, completion.callCount())
}

func TestGenerateTherapistPlan_FormatsDiarizedTranscript(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: validTherapistPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	_, err := service.GenerateTherapistPlan(context.Background(), diarizedTranscript())

	require.NoError(t, err)
	calls := completion.recordedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "[THERAPIST]: How has your week been?\n\n[CLIENT]: Stressful, mostly because of work.", calls[0].req.UserContent)
	assert.True(t, calls[0].req.JSONMode)
}

func TestGenerateTherapistPlan_RawTranscriptPassesThrough(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: validTherapistPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	_, err := service.GenerateTherapistPlan(context.Background(), entities.Transcript{Raw: "plain transcribed text"})

	require.NoError(t, err)
	calls := completion.recordedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "plain transcribed text", calls[0].req.UserContent)
}

func TestGenerateTherapistPlan_RetriesTransportFailure(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{err: apperrors.NewTransportError("rate limited", nil)},
		{content: validTherapistPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	plan, err := service.GenerateTherapistPlan(context.Background(), diarizedTranscript())

	require.NoError(t, err)
	assert.NotNil(t, plan)
	assert.Equal(t, 2, completion.callCount())
}

func TestGenerateTherapistPlan_MalformedResponseNotRetried(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: `{"presenting_concerns": []}`},
		{content: validTherapistPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	_, err := service.GenerateTherapistPlan(context.Background(), diarizedTranscript())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedResponse))
	assert.Contains(t, err.Error(), "clinical_impressions")
	assert.Equal(t, 1, completion.callCount())
}

func TestGenerateTherapistPlan_EmptyTranscriptRejected(t *testing.T) {
	completion := &fakeCompletion{}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	_, err := service.GenerateTherapistPlan(context.Background(), entities.Transcript{})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, completion.callCount())
}

func TestGenerateClientPlan_TherapistPlanIsSoleInput(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: validClientPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	therapistPlan := &entities.TherapistPlan{
		PresentingConcerns:  []string{"anxiety"},
		ClinicalImpressions: "GAD presentation",
		Risks:               []string{"none noted"},
	}

	plan, err := service.GenerateClientPlan(context.Background(), therapistPlan)

	require.NoError(t, err)
	assert.Equal(t, "You spoke openly about what has been weighing on you.", plan.YourProgress)

	serialized, serr := therapistPlan.JSON()
	require.NoError(t, serr)
	calls := completion.recordedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, serialized, calls[0].req.UserContent)
}

func TestGenerateClientPlan_OutputNeverCarriesRiskKeys(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: validClientPlanJSON},
	}}
	service := NewPlanGenerationService(completion, fastRetryConfig())

	plan, err := service.GenerateClientPlan(context.Background(), &entities.TherapistPlan{
		Risks: []string{"passive ideation reported"},
	})

	require.NoError(t, err)
	serialized, serr := plan.JSON()
	require.NoError(t, serr)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(serialized), &keys))
	assert.NotContains(t, keys, "risks")
	assert.NotContains(t, keys, "clinical_impressions")
}

func TestGenerateClientPlan_NilPlanRejected(t *testing.T) {
	service := NewPlanGenerationService(&fakeCompletion{}, fastRetryConfig())

	_, err := service.GenerateClientPlan(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
