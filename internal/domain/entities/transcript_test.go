package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_PromptText_Diarized(t *testing.T) {
	transcript := Transcript{
		Diarized: &DiarizedTranscript{
			Segments: []TranscriptSegment{
				{Speaker: SpeakerTherapist, Text: "What brings you in today?"},
				{Speaker: SpeakerClient, Text: "I have been feeling overwhelmed."},
			},
			FullText: "What brings you in today? I have been feeling overwhelmed.",
		},
	}

	assert.Equal(t,
		"[THERAPIST]: What brings you in today?\n\n[CLIENT]: I have been feeling overwhelmed.",
		transcript.PromptText())
}

func TestTranscript_PromptText_RawPassthrough(t *testing.T) {
	transcript := Transcript{Raw: "unstructured transcription text"}

	assert.Equal(t, "unstructured transcription text", transcript.PromptText())
}

func TestTranscript_StoredJSONRoundTrip(t *testing.T) {
	original := Transcript{
		Diarized: &DiarizedTranscript{
			Segments: []TranscriptSegment{
				{Speaker: SpeakerTherapist, Text: "How was the exercise?", StartSeconds: 0, EndSeconds: 2},
				{Speaker: SpeakerClient, Text: "Harder than I expected.", StartSeconds: 2, EndSeconds: 4.5},
				{Speaker: SpeakerTherapist, Text: "That is very common.", StartSeconds: 4.5, EndSeconds: 6},
			},
			FullText: "How was the exercise? Harder than I expected. That is very common.",
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Transcript
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.NotNil(t, decoded.Diarized)
	require.Len(t, decoded.Diarized.Segments, 3)
	for i, seg := range decoded.Diarized.Segments {
		assert.Equal(t, original.Diarized.Segments[i].Speaker, seg.Speaker)
		assert.Equal(t, original.Diarized.Segments[i].Text, seg.Text)
	}
	assert.Equal(t, original.Diarized.FullText, decoded.Diarized.FullText)
	assert.Equal(t, original.PromptText(), decoded.PromptText())
}

func TestTranscript_IsEmpty(t *testing.T) {
	assert.True(t, Transcript{}.IsEmpty())
	assert.True(t, Transcript{Raw: "   "}.IsEmpty())
	assert.True(t, Transcript{Diarized: &DiarizedTranscript{}}.IsEmpty())
	assert.False(t, Transcript{Raw: "text"}.IsEmpty())
	assert.False(t, Transcript{Diarized: &DiarizedTranscript{
		Segments: []TranscriptSegment{{Speaker: SpeakerClient, Text: "hi"}},
		FullText: "hi",
	}}.IsEmpty())
}
