package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/log"
)

// ============================================================================
// Server Tests
// ============================================================================

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Deps{
		Runner: &fakeRunner{},
		Models: []config.ModelConfig{
			{Name: "chat-model", Label: "Chat", Tools: true, Vision: true},
			{Name: "thinker", Label: "Thinker", Reasoning: true},
		},
		DefaultModel: "chat-model",
		Pinger:       fakePinger{},
		Logger:       log.NewNop(),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	h := testServer(t).Handler()

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := get(t, h, "/ready"); rec.Code != http.StatusOK {
		t.Errorf("/ready = %d", rec.Code)
	}
}

func TestReadiness_DatabaseDown(t *testing.T) {
	srv := NewServer(Deps{
		Runner:       &fakeRunner{},
		DefaultModel: "m",
		Pinger:       fakePinger{err: errors.New("connection refused")},
		Logger:       log.NewNop(),
	})

	if rec := get(t, srv.Handler(), "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d, want 503", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/api/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Models  []config.ModelConfig `json:"models"`
		Default string               `json:"default"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Models) != 2 {
		t.Errorf("models = %d, want 2", len(resp.Models))
	}
	if resp.Default != "chat-model" {
		t.Errorf("default = %q", resp.Default)
	}
	if !resp.Models[0].Tools || !resp.Models[0].Vision {
		t.Errorf("capabilities lost: %+v", resp.Models[0])
	}
}

func TestListKnowledgeBases(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/api/knowledge-bases")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		KnowledgeBases []KnowledgeBase `json:"knowledge_bases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.KnowledgeBases) == 0 {
		t.Error("expected at least one knowledge base")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	if rec := get(t, testServer(t).Handler(), "/api/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})
	h := chain(panicking, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mk("outer"), mk("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v", order)
	}
}
