package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/attunehealth/theraplan/backend/internal/domain/entities"
	"github.com/attunehealth/theraplan/backend/internal/infrastructure/observability"
)

// 25 MB, matching the transcription capability's upload cap
const maxAudioBytes = 25 << 20

// TranscriptionService defines the transcript operations used by the
// handler.
type TranscriptionService interface {
	FinalizeSessionTranscript(ctx context.Context, sessionID string, audio []byte, mimeType string) (*entities.Transcript, error)
}

// TranscriptionHandler handles session audio uploads.
type TranscriptionHandler struct {
	service TranscriptionService
}

// NewTranscriptionHandler creates a new transcription handler.
func NewTranscriptionHandler(service TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{service: service}
}

// UploadSessionAudio handles POST /api/sessions/{id}/transcript
func (h *TranscriptionHandler) UploadSessionAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session id is required")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		respondWithError(w, http.StatusBadRequest, "Content-Type is required")
		return
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "audio exceeds the maximum upload size")
		return
	}
	if len(audio) == 0 {
		respondWithError(w, http.StatusBadRequest, "audio body is empty")
		return
	}

	transcript, err := h.service.FinalizeSessionTranscript(r.Context(), sessionID, audio, mimeType)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("transcript finalization failed")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, transcript)
}
