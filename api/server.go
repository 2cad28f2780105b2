// Package api exposes the chat workbench over HTTP.
//
// Endpoints:
//
//	POST /api/chat               synchronous chat (JSON in, JSON out)
//	POST /api/chat/stream        streaming chat (SSE)
//	POST /api/documents/process  document ingestion with progress (SSE)
//	POST /api/audio/process      audio transcription
//	GET  /api/models             available models and capabilities
//	GET  /api/knowledge-bases    selectable knowledge bases
//	GET  /api/conversations      list conversations
//	POST /api/conversations      create conversation
//	GET  /api/conversations/{id} conversation with its turns
//	DELETE /api/conversations/{id}
//	GET  /health                 liveness probe
//	GET  /ready                  readiness probe
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/transcribe"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second

	// maxUploadBytes bounds multipart uploads (documents and audio).
	maxUploadBytes = 32 << 20
)

// Deps carries everything the server routes to. Chat, Models and Logger are
// required; the rest degrade their endpoints gracefully when nil.
type Deps struct {
	Runner       ChatRunner
	Store        ConversationStore
	Titler       ConversationTitler
	Pipeline     *ingest.Pipeline
	Transcriber  transcribe.Transcriber
	Pinger       Pinger
	Models       []config.ModelConfig
	DefaultModel string
	Logger       log.Logger
}

// Server is the HTTP front of the workbench.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer registers all routes and returns the server.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: deps.Logger}

	NewHealthHandler(deps.Pinger, deps.Logger).RegisterRoutes(mux)
	NewChatHandler(deps.Runner, deps.Store, deps.Titler, deps.Logger).RegisterRoutes(mux)
	NewConversationHandler(deps.Store, deps.DefaultModel, deps.Logger).RegisterRoutes(mux)
	NewModelsHandler(deps.Models, deps.DefaultModel).RegisterRoutes(mux)
	NewDocumentHandler(deps.Pipeline, deps.Logger).RegisterRoutes(mux)
	NewAudioHandler(deps.Transcriber, deps.Logger).RegisterRoutes(mux)

	return s
}

// Handler returns the routed handler with middleware applied.
// Order: recovery outermost, then request logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		// No WriteTimeout: SSE streams stay open for the life of a turn.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
