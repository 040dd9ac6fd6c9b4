package providers

import (
	"context"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
)

// TranscriptionProvider is the speech-to-text-with-diarization
// capability. Segments may be absent when the capability cannot
// attribute speakers.
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*entities.TranscriptionResult, error)
}
