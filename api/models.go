package api

import (
	"net/http"

	"github.com/atelier-ai/atelier/internal/config"
)

// ModelsHandler serves the model catalog and knowledge-base listing.
type ModelsHandler struct {
	models       []config.ModelConfig
	defaultModel string
}

// NewModelsHandler creates the handler from the configured catalog.
func NewModelsHandler(models []config.ModelConfig, defaultModel string) *ModelsHandler {
	return &ModelsHandler{models: models, defaultModel: defaultModel}
}

// RegisterRoutes registers the catalog routes.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("GET /api/knowledge-bases", h.listKnowledgeBases)
}

func (h *ModelsHandler) listModels(w http.ResponseWriter, _ *http.Request) {
	models := h.models
	if models == nil {
		models = []config.ModelConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"default": h.defaultModel,
	})
}

// KnowledgeBase describes one selectable chunk collection.
type KnowledgeBase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// listKnowledgeBases returns the selectable knowledge bases. Chunks travel
// inline on chat requests, so the only collection is the per-session one
// built from uploaded documents.
func (h *ModelsHandler) listKnowledgeBases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"knowledge_bases": []KnowledgeBase{
			{
				ID:          "session",
				Name:        "Session documents",
				Description: "Chunks from documents uploaded in this session",
			},
		},
	})
}
