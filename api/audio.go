package api

import (
	"net/http"
	"strings"

	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/transcribe"
)

// AudioHandler serves the audio transcription endpoint.
type AudioHandler struct {
	transcriber transcribe.Transcriber
	logger      log.Logger
}

// NewAudioHandler creates the handler. A nil transcriber disables the
// endpoint with 503 responses.
func NewAudioHandler(transcriber transcribe.Transcriber, logger log.Logger) *AudioHandler {
	return &AudioHandler{transcriber: transcriber, logger: logger}
}

// RegisterRoutes registers the transcription route.
func (h *AudioHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/audio/process", h.process)
}

// process takes a multipart audio upload under the "file" field and replies
// with the transcription.
func (h *AudioHandler) process(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription_disabled", "audio transcription is not configured")
		return
	}

	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	if !transcribe.Supported(filename) {
		writeError(w, http.StatusBadRequest, "unsupported_format", "unsupported audio format")
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), filename, data)
	if err != nil {
		if strings.Contains(err.Error(), "unsupported") || strings.Contains(err.Error(), "empty") {
			writeError(w, http.StatusBadRequest, "invalid_audio", err.Error())
			return
		}
		h.logger.Error("transcription failed", "file", filename, "error", err)
		writeError(w, http.StatusBadGateway, "transcription_failed", "transcription backend failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
