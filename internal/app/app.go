// Package app wires the service components together.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/ingest"
	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/session"
	"github.com/atelier-ai/atelier/internal/transcribe"
)

// App is the assembled service. Pool, Store and Titler are nil when
// conversation storage is disabled; Transcriber is nil without an API key.
type App struct {
	Config *config.Config
	Logger log.Logger
	Genkit *genkit.Genkit

	Orchestrator *chat.Orchestrator
	Pipeline     *ingest.Pipeline
	Transcriber  transcribe.Transcriber

	Pool   *pgxpool.Pool
	Store  *session.Store
	Titler *session.Titler
}

// Close releases held resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
}
