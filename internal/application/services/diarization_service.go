package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	"github.com/attunehealth/theraplan/backend/internal/domain/repositories"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
	"github.com/attunehealth/theraplan/backend/pkg/schema"
)

const speakerClassificationSystemPrompt = `You are analyzing a therapy session transcript where speakers are labeled with opaque tags. Decide which tag is the THERAPIST. The therapist asks guiding questions, reflects feelings back, and suggests techniques or homework; the client shares personal experiences. Return ONLY valid JSON with this schema:
{
  "therapist_tag": string (the tag belonging to the therapist),
  "confidence": string ("high", "medium", or "low"),
  "rationale": string (1-2 sentences)
}`

type speakerClassification struct {
	TherapistTag string `json:"therapist_tag"`
	Confidence   string `json:"confidence"`
	Rationale    string `json:"rationale"`
}

var speakerClassificationFields = []string{"therapist_tag", "confidence", "rationale"}

// DiarizationService turns raw audio into a speaker-attributed session
// transcript. Speaker role assignment uses a single classification call
// that is never retried: a failure there is a transcription failure.
type DiarizationService struct {
	transcription providers.TranscriptionProvider
	completion    providers.CompletionProvider
	sessions      repositories.SessionRepository
}

// NewDiarizationService creates a new diarization service.
func NewDiarizationService(
	transcription providers.TranscriptionProvider,
	completion providers.CompletionProvider,
	sessions repositories.SessionRepository,
) *DiarizationService {
	return &DiarizationService{
		transcription: transcription,
		completion:    completion,
		sessions:      sessions,
	}
}

// TranscribeAndDiarize transcribes the audio and attributes each segment
// to the therapist or the client. When the speech-to-text capability
// reports no segments or no speaker tags, the flat text is returned
// unchanged and downstream consumers treat the transcript as
// unstructured.
func (s *DiarizationService) TranscribeAndDiarize(ctx context.Context, audio []byte, mimeType string) (*entities.Transcript, error) {
	result, err := s.transcription.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}

	return s.Diarize(ctx, result)
}

// Diarize maps the raw speaker tags of a transcription result to
// therapist/client roles. Degraded modes: no tagged segments yields a
// raw transcript; a single unique tag yields single-speaker attribution.
// More than two distinct tags is rejected as unsupported input.
func (s *DiarizationService) Diarize(ctx context.Context, result *entities.TranscriptionResult) (*entities.Transcript, error) {
	if result == nil {
		return nil, apperrors.NewValidationError("transcription result is required")
	}

	tagged := taggedSegments(result.Segments)
	if len(tagged) == 0 {
		if strings.TrimSpace(result.Text) == "" {
			return nil, apperrors.NewValidationError("transcription produced no text")
		}
		return &entities.Transcript{Raw: result.Text}, nil
	}

	tags := distinctTags(tagged)
	if len(tags) > 2 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported transcript: %d distinct speakers, expected at most 2", len(tags)))
	}

	therapistTag, err := s.classifyTherapistTag(ctx, tagged)
	if err != nil {
		return nil, err
	}

	segments := make([]entities.TranscriptSegment, 0, len(tagged))
	texts := make([]string, 0, len(tagged))
	for _, seg := range tagged {
		speaker := entities.SpeakerClient
		if seg.SpeakerTag == therapistTag {
			speaker = entities.SpeakerTherapist
		}
		segments = append(segments, entities.TranscriptSegment{
			Speaker:      speaker,
			Text:         seg.Text,
			StartSeconds: seg.StartSeconds,
			EndSeconds:   seg.EndSeconds,
		})
		texts = append(texts, seg.Text)
	}

	return &entities.Transcript{
		Diarized: &entities.DiarizedTranscript{
			Segments: segments,
			FullText: strings.Join(texts, " "),
		},
	}, nil
}

// FinalizeSessionTranscript transcribes, diarizes, and persists the
// transcript onto the session record.
func (s *DiarizationService) FinalizeSessionTranscript(ctx context.Context, sessionID string, audio []byte, mimeType string) (*entities.Transcript, error) {
	transcript, err := s.TranscribeAndDiarize(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateTranscript(ctx, sessionID, *transcript); err != nil {
		return nil, err
	}

	return transcript, nil
}

// classifyTherapistTag asks the generation capability which tag belongs
// to the therapist. Confidence and rationale are logged, never used in
// control flow.
func (s *DiarizationService) classifyTherapistTag(ctx context.Context, segments []entities.RawSegment) (string, error) {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, "["+seg.SpeakerTag+"]: "+seg.Text)
	}

	raw, err := s.completion.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: speakerClassificationSystemPrompt,
		UserContent:  strings.Join(lines, "\n"),
		JSONMode:     true,
		Temperature:  0,
		MaxTokens:    200,
	})
	if err != nil {
		return "", fmt.Errorf("speaker classification: %w", err)
	}

	var classification speakerClassification
	if err := schema.Decode([]byte(raw), speakerClassificationFields, &classification); err != nil {
		return "", fmt.Errorf("speaker classification: %w", err)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("therapist_tag", classification.TherapistTag).
		Str("confidence", classification.Confidence).
		Str("rationale", classification.Rationale).
		Msg("speaker roles classified")

	return classification.TherapistTag, nil
}

func taggedSegments(segments []entities.RawSegment) []entities.RawSegment {
	tagged := make([]entities.RawSegment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.SpeakerTag) != "" {
			tagged = append(tagged, seg)
		}
	}
	return tagged
}

func distinctTags(segments []entities.RawSegment) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, 2)
	for _, seg := range segments {
		if _, ok := seen[seg.SpeakerTag]; ok {
			continue
		}
		seen[seg.SpeakerTag] = struct{}{}
		tags = append(tags, seg.SpeakerTag)
	}
	return tags
}
