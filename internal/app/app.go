// Package app provides application initialization and dependency wiring.
//
// App is the container holding every long-lived component: the Genkit
// instance, the database pool, the knowledge store, the conversation
// graph, and the dispatcher serving the HTTP API. Components are wired
// explicitly in Setup; nothing in this package is a global singleton.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/convo"
	"github.com/quillhq/quill/internal/dispatch"
	"github.com/quillhq/quill/internal/ingest"
	"github.com/quillhq/quill/internal/knowledge"
	"github.com/quillhq/quill/internal/session"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Knowledge  *knowledge.Store
	Ingestor   *ingest.Ingestor
	Sessions   *session.Registry
	History    *convo.History
	Graph      *convo.Graph
	Dispatcher *dispatch.Dispatcher

	otelCleanup func()
	dbCleanup   func()
}

// Close releases all resources held by the App. Safe to call on a
// partially initialized App; cleanups run in reverse setup order.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
