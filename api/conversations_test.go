package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/log"
)

// ============================================================================
// Conversation CRUD Tests
// ============================================================================

func conversationMux(store ConversationStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewConversationHandler(store, "chat-model", log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestConversations_CreateAndGet(t *testing.T) {
	store := newFakeStore()
	mux := conversationMux(store)

	rec := postJSON(t, mux, "/api/conversations", CreateConversationRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created struct {
		ID    uuid.UUID `json:"id"`
		Model string    `json:"model"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Model != "chat-model" {
		t.Errorf("model defaulted to %q", created.Model)
	}

	if err := store.AppendTurns(context.Background(), created.ID, []chat.Turn{
		{Role: "user", Content: "hi"},
	}); err != nil {
		t.Fatalf("seed turns: %v", err)
	}

	rec = get(t, mux, "/api/conversations/"+created.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var detail struct {
		ID    uuid.UUID   `json:"id"`
		Turns []chat.Turn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.ID != created.ID {
		t.Errorf("id = %s", detail.ID)
	}
	if len(detail.Turns) != 1 || detail.Turns[0].Content != "hi" {
		t.Errorf("turns = %+v", detail.Turns)
	}
}

func TestConversations_List(t *testing.T) {
	store := newFakeStore()
	for range 3 {
		if _, err := store.Create(context.Background(), "m"); err != nil {
			t.Fatal(err)
		}
	}

	rec := get(t, conversationMux(store), "/api/conversations?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d", resp.Total)
	}
	if resp.Limit != 10 {
		t.Errorf("limit = %d", resp.Limit)
	}
}

func TestConversations_Delete(t *testing.T) {
	store := newFakeStore()
	conv, _ := store.Create(context.Background(), "m")
	mux := conversationMux(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+conv.ID.String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	// Second delete finds nothing.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+conv.ID.String(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestConversations_BadID(t *testing.T) {
	rec := get(t, conversationMux(newFakeStore()), "/api/conversations/not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConversations_UnknownID(t *testing.T) {
	rec := get(t, conversationMux(newFakeStore()), "/api/conversations/"+uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestConversations_StorageDisabled(t *testing.T) {
	rec := get(t, conversationMux(nil), "/api/conversations")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=0", 1},
		{"limit=9999", 200},
		{"limit=abc", 50},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 50, 1, 200); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
