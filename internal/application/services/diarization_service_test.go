package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

const therapistTagAResponse = `{"therapist_tag": "A", "confidence": "high", "rationale": "Tag A asks guiding questions."}`

func twoSpeakerResult() *entities.TranscriptionResult {
	return &entities.TranscriptionResult{
		Text: "How are you feeling today? Honestly, exhausted. What has been draining you? Work, mostly.",
		Segments: []entities.RawSegment{
			{SpeakerTag: "A", Text: "How are you feeling today?", StartSeconds: 0, EndSeconds: 2.5},
			{SpeakerTag: "B", Text: "Honestly, exhausted.", StartSeconds: 2.5, EndSeconds: 4},
			{SpeakerTag: "A", Text: "What has been draining you?", StartSeconds: 4, EndSeconds: 6},
			{SpeakerTag: "B", Text: "Work, mostly.", StartSeconds: 6, EndSeconds: 7.5},
		},
	}
}

func TestDiarize_RelabelsTagsToRoles(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{{content: therapistTagAResponse}}}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	transcript, err := service.Diarize(context.Background(), twoSpeakerResult())

	require.NoError(t, err)
	require.NotNil(t, transcript.Diarized)
	segments := transcript.Diarized.Segments
	require.Len(t, segments, 4)
	assert.Equal(t, entities.SpeakerTherapist, segments[0].Speaker)
	assert.Equal(t, entities.SpeakerClient, segments[1].Speaker)
	assert.Equal(t, entities.SpeakerTherapist, segments[2].Speaker)
	assert.Equal(t, entities.SpeakerClient, segments[3].Speaker)
	assert.Equal(t, "How are you feeling today?", segments[0].Text)
	assert.Equal(t, 2.5, segments[0].EndSeconds)
}

func TestDiarize_FullTextJoinsSegmentsInOrder(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{{content: therapistTagAResponse}}}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	transcript, err := service.Diarize(context.Background(), twoSpeakerResult())

	require.NoError(t, err)
	assert.Equal(t,
		"How are you feeling today? Honestly, exhausted. What has been draining you? Work, mostly.",
		transcript.Diarized.FullText)
}

func TestDiarize_NoSegmentsDegradesToRawText(t *testing.T) {
	completion := &fakeCompletion{}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	transcript, err := service.Diarize(context.Background(), &entities.TranscriptionResult{
		Text: "flat transcription without speaker attribution",
	})

	require.NoError(t, err)
	assert.Nil(t, transcript.Diarized)
	assert.Equal(t, "flat transcription without speaker attribution", transcript.Raw)
	assert.Equal(t, 0, completion.callCount())
}

func TestDiarize_UntaggedSegmentsDegradeToRawText(t *testing.T) {
	completion := &fakeCompletion{}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	transcript, err := service.Diarize(context.Background(), &entities.TranscriptionResult{
		Text: "flat transcription",
		Segments: []entities.RawSegment{
			{SpeakerTag: "", Text: "flat transcription"},
		},
	})

	require.NoError(t, err)
	assert.Nil(t, transcript.Diarized)
	assert.Equal(t, "flat transcription", transcript.Raw)
}

func TestDiarize_SingleTagAttributesAllToClassifiedRole(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{content: `{"therapist_tag": "A", "confidence": "low", "rationale": "Only one speaker present."}`},
	}}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	transcript, err := service.Diarize(context.Background(), &entities.TranscriptionResult{
		Segments: []entities.RawSegment{
			{SpeakerTag: "A", Text: "Let us start with a breathing exercise."},
			{SpeakerTag: "A", Text: "Notice how your shoulders feel."},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, transcript.Diarized)
	for _, seg := range transcript.Diarized.Segments {
		assert.Equal(t, entities.SpeakerTherapist, seg.Speaker)
	}
}

func TestDiarize_MoreThanTwoTagsRejected(t *testing.T) {
	completion := &fakeCompletion{}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	_, err := service.Diarize(context.Background(), &entities.TranscriptionResult{
		Segments: []entities.RawSegment{
			{SpeakerTag: "A", Text: "one"},
			{SpeakerTag: "B", Text: "two"},
			{SpeakerTag: "C", Text: "three"},
		},
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, completion.callCount())
}

func TestDiarize_ClassificationFailurePropagates(t *testing.T) {
	completion := &fakeCompletion{responses: []completionResponse{
		{err: apperrors.NewTransportError("upstream timeout", nil)},
	}}
	service := NewDiarizationService(&fakeTranscription{}, completion, newFakeSessionRepo())

	_, err := service.Diarize(context.Background(), twoSpeakerResult())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransport))
	// no retry: classification is a single call
	assert.Equal(t, 1, completion.callCount())
}

func TestDiarize_EmptyTranscriptionRejected(t *testing.T) {
	service := NewDiarizationService(&fakeTranscription{}, &fakeCompletion{}, newFakeSessionRepo())

	_, err := service.Diarize(context.Background(), &entities.TranscriptionResult{Text: "  "})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestFinalizeSessionTranscript_PersistsDiarizedTranscript(t *testing.T) {
	sessions := newFakeSessionRepo(&entities.Session{ID: "sess-1"})
	completion := &fakeCompletion{responses: []completionResponse{{content: therapistTagAResponse}}}
	transcription := &fakeTranscription{result: twoSpeakerResult()}
	service := NewDiarizationService(transcription, completion, sessions)

	transcript, err := service.FinalizeSessionTranscript(context.Background(), "sess-1", []byte("audio"), "audio/mpeg")

	require.NoError(t, err)
	require.NotNil(t, transcript.Diarized)

	stored, ok := sessions.transcripts["sess-1"]
	require.True(t, ok)
	assert.Equal(t, transcript.Diarized.FullText, stored.Diarized.FullText)
	assert.Len(t, stored.Diarized.Segments, 4)
}

func TestFinalizeSessionTranscript_TranscriptionFailurePropagates(t *testing.T) {
	transcription := &fakeTranscription{err: apperrors.NewTransportError("speech service unavailable", nil)}
	service := NewDiarizationService(transcription, &fakeCompletion{}, newFakeSessionRepo())

	_, err := service.FinalizeSessionTranscript(context.Background(), "sess-1", []byte("audio"), "audio/mpeg")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransport))
}
