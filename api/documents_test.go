package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/log"
)

// ============================================================================
// Document Ingestion Tests
// ============================================================================

func multipartUpload(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func documentMux() *http.ServeMux {
	pipeline := ingest.NewPipeline(ingest.NewSplitter(50, 10), log.NewNop(), ingest.TextExtractor{})
	mux := http.NewServeMux()
	NewDocumentHandler(pipeline, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestProcessDocument_StreamsProgressAndResult(t *testing.T) {
	mux := documentMux()

	req := multipartUpload(t, "/api/documents/process", "notes.txt",
		[]byte("first paragraph of the notes\n\nsecond paragraph of the notes"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	frames := parseSSE(t, rec.Body.String())
	if len(frames) < 2 {
		t.Fatalf("got %d frames", len(frames))
	}
	for _, frame := range frames[:len(frames)-1] {
		if frame["type"] != "progress" {
			t.Errorf("frame type = %v, want progress", frame["type"])
		}
	}
	last := frames[len(frames)-1]
	if last["type"] != "result" {
		t.Fatalf("terminal frame type = %v", last["type"])
	}
	chunks, ok := last["chunks"].([]any)
	if !ok || len(chunks) == 0 {
		t.Errorf("result carries no chunks: %v", last)
	}
}

func TestProcessDocument_UnsupportedFile(t *testing.T) {
	mux := documentMux()

	req := multipartUpload(t, "/api/documents/process", "binary.exe", []byte{0x4d, 0x5a})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	frames := parseSSE(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last["type"] != "error" {
		t.Errorf("terminal frame type = %v, want error", last["type"])
	}
}

func TestProcessDocument_MissingFileField(t *testing.T) {
	mux := documentMux()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessDocument_PipelineDisabled(t *testing.T) {
	mux := http.NewServeMux()
	NewDocumentHandler(nil, log.NewNop()).RegisterRoutes(mux)

	req := multipartUpload(t, "/api/documents/process", "notes.txt", []byte("text"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
