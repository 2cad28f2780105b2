package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/sse"
)

// ChatRunner drives one orchestrated chat turn. *chat.Orchestrator
// satisfies it.
type ChatRunner interface {
	Run(ctx context.Context, req chat.Request) <-chan chat.Event
}

// ConversationTitler names a conversation after its first exchange.
// *session.Titler satisfies it.
type ConversationTitler interface {
	MaybeTitle(ctx context.Context, id uuid.UUID, question, answer string)
}

// ChatHandler serves the synchronous and streaming chat endpoints.
type ChatHandler struct {
	runner ChatRunner
	store  ConversationStore
	titler ConversationTitler
	logger log.Logger
}

// NewChatHandler creates the chat handler. store and titler may be nil;
// chat then runs without persistence.
func NewChatHandler(runner ChatRunner, store ConversationStore, titler ConversationTitler, logger log.Logger) *ChatHandler {
	return &ChatHandler{runner: runner, store: store, titler: titler, logger: logger}
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatResponse is the synchronous chat reply.
type ChatResponse struct {
	SessionID  string           `json:"session_id"`
	Model      string           `json:"model"`
	Response   string           `json:"response"`
	References []chat.Reference `json:"references"`
}

// handleChat runs a full turn and replies once with the final answer.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var (
		modelName string
		complete  *chat.MessageCompletePayload
		failure   *chat.ErrorPayload
	)
	for ev := range h.runner.Run(r.Context(), *req) {
		switch p := ev.Payload.(type) {
		case chat.SessionInitPayload:
			modelName = p.Model
		case chat.MessageCompletePayload:
			complete = &p
		case chat.ErrorPayload:
			failure = &p
		}
	}

	if failure != nil {
		writeError(w, http.StatusBadGateway, "chat_failed", failure.Error)
		return
	}
	if complete == nil {
		writeError(w, http.StatusBadGateway, "chat_failed", "stream ended without a result")
		return
	}

	h.persist(r.Context(), *req, complete.FullContent)
	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:  req.SessionID,
		Model:      modelName,
		Response:   complete.FullContent,
		References: complete.References,
	})
}

// handleStream runs a turn and forwards every orchestration event as one
// SSE data frame.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("streaming unsupported", "error", err)
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var complete *chat.MessageCompletePayload
	for ev := range h.runner.Run(r.Context(), *req) {
		if err := sw.WriteJSON(r.Context(), ev); err != nil {
			h.logger.Info("client left chat stream", "session_id", req.SessionID, "error", err)
			// Keep draining; the orchestrator closes the channel itself.
			continue
		}
		if p, ok := ev.Payload.(chat.MessageCompletePayload); ok {
			complete = &p
		}
	}

	if complete != nil {
		h.persist(r.Context(), *req, complete.FullContent)
	}
}

// decode parses and minimally validates the request body, and assigns a
// session id when none was provided.
func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (*chat.Request, bool) {
	var req chat.Request
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return nil, false
	}
	if req.Content == "" && len(req.Blocks) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "content or content_blocks is required")
		return nil, false
	}

	if req.SessionID == "" {
		if h.store != nil {
			conv, err := h.store.Create(r.Context(), req.Model)
			if err != nil {
				h.logger.Error("creating conversation", "error", err)
				req.SessionID = uuid.NewString()
				return &req, true
			}
			req.SessionID = conv.ID.String()
		} else {
			req.SessionID = uuid.NewString()
		}
	}
	return &req, true
}

// persist appends the exchange to the conversation and kicks off titling.
// Failures are logged and never surfaced; the stream already delivered the
// answer.
func (h *ChatHandler) persist(ctx context.Context, req chat.Request, answer string) {
	if h.store == nil {
		return
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		h.logger.Debug("session id is not persistent, skipping storage", "session_id", req.SessionID)
		return
	}

	ctx = context.WithoutCancel(ctx)
	turns := []chat.Turn{
		{Role: "user", Content: req.Content, Blocks: req.Blocks},
		{Role: "assistant", Content: answer},
	}
	if err := h.store.AppendTurns(ctx, id, turns); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.logger.Debug("conversation missing, exchange not stored", "conversation_id", id)
		} else {
			h.logger.Error("storing exchange", "conversation_id", id, "error", err)
		}
		return
	}

	if h.titler != nil {
		go h.titler.MaybeTitle(ctx, id, req.Content, answer)
	}
}
