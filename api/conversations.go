package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/session"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxListOffset    = 100000
)

// ConversationStore is the persistence surface the API needs.
// *session.Store satisfies it.
type ConversationStore interface {
	Create(ctx context.Context, model string) (*session.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Conversation, error)
	List(ctx context.Context, limit, offset int) ([]*session.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AppendTurns(ctx context.Context, id uuid.UUID, turns []chat.Turn) error
	Turns(ctx context.Context, id uuid.UUID) ([]chat.Turn, error)
}

// ConversationHandler serves the conversation CRUD endpoints.
type ConversationHandler struct {
	store        ConversationStore
	defaultModel string
	logger       log.Logger
}

// NewConversationHandler creates the handler. A nil store disables the
// endpoints with 503 responses.
func NewConversationHandler(store ConversationStore, defaultModel string, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, defaultModel: defaultModel, logger: logger}
}

// RegisterRoutes registers the conversation routes.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("GET /api/conversations/{id}", h.get)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.del)
}

func (h *ConversationHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "conversation storage is not configured")
		return false
	}
	return true
}

func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	limit := parseIntParam(r, "limit", defaultListLimit, 1, maxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, maxListOffset)

	convs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []*session.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"total":         len(convs),
		"limit":         limit,
		"offset":        offset,
	})
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Model string `json:"model"`
}

func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}
	if req.Model == "" {
		req.Model = h.defaultModel
	}

	conv, err := h.store.Create(r.Context(), req.Model)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ConversationDetail is a conversation together with its turns.
type ConversationDetail struct {
	*session.Conversation
	Turns []chat.Turn `json:"turns"`
}

func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("loading conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to load conversation")
		return
	}

	turns, err := h.store.Turns(r.Context(), id)
	if err != nil {
		h.logger.Error("loading turns", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to load conversation turns")
		return
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	writeJSON(w, http.StatusOK, ConversationDetail{Conversation: conv, Turns: turns})
}

func (h *ConversationHandler) del(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses the {id} path segment.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with bounds.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
