package api

import (
	"io"
	"net/http"

	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/sse"
)

// DocumentHandler serves the document ingestion endpoint.
type DocumentHandler struct {
	pipeline *ingest.Pipeline
	logger   log.Logger
}

// NewDocumentHandler creates the handler. A nil pipeline disables the
// endpoint with 503 responses.
func NewDocumentHandler(pipeline *ingest.Pipeline, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers the ingestion route.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents/process", h.process)
}

// process takes a multipart upload under the "file" field and streams
// ingestion progress as SSE, ending in a result or error event.
func (h *DocumentHandler) process(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion_disabled", "document ingestion is not configured")
		return
	}

	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("streaming unsupported", "error", err)
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for ev := range h.pipeline.Process(r.Context(), filename, data) {
		if err := sw.WriteJSON(r.Context(), ev); err != nil {
			h.logger.Info("client left ingestion stream", "file", filename, "error", err)
			// Keep draining so the pipeline goroutine can finish.
		}
	}
}

// readUpload extracts the "file" part of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected a multipart upload: "+err.Error())
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", `missing "file" field`)
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "reading upload: "+err.Error())
		return "", nil, false
	}
	return header.Filename, data, true
}
