package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"time"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

type transcriptionSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type transcriptionEnvelope struct {
	Text     string                 `json:"text"`
	Segments []transcriptionSegment `json:"segments"`
}

// Transcribe sends session audio for speech-to-text with diarization.
// Segments without speaker labels are passed through; the diarization
// service decides how to degrade.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (*entities.TranscriptionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := "session.audio"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		filename = "session" + exts[0]
	}

	filePart, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build transcription request", err)
	}
	if _, err := filePart.Write(audio); err != nil {
		return nil, apperrors.NewInternalError("failed to write audio payload", err)
	}
	if err := writer.WriteField("model", c.transcriptionModel); err != nil {
		return nil, apperrors.NewInternalError("failed to write model field", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, apperrors.NewInternalError("failed to write response_format field", err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.NewInternalError("failed to finalize transcription request", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, "/audio/transcriptions", writer.FormDataContentType(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		recordAIMetric(ctx, c.transcriptionModel, "transcription", 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "transcription"); err != nil {
		recordAIMetric(ctx, c.transcriptionModel, "transcription", resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var envelope transcriptionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordAIMetric(ctx, c.transcriptionModel, "transcription", resp.StatusCode, time.Since(start), err)
		return nil, apperrors.NewMalformedResponseError("failed to decode transcription response", err)
	}

	recordAIMetric(ctx, c.transcriptionModel, "transcription", resp.StatusCode, time.Since(start), nil)

	result := &entities.TranscriptionResult{Text: envelope.Text}
	for _, seg := range envelope.Segments {
		result.Segments = append(result.Segments, entities.RawSegment{
			SpeakerTag:   seg.Speaker,
			Text:         seg.Text,
			StartSeconds: seg.Start,
			EndSeconds:   seg.End,
		})
	}

	return result, nil
}
