// Package app assembles the application. Setup builds every component
// in dependency order and returns an App whose Close releases them in
// reverse. The HTTP server, the MCP server, and the CLI commands are
// thin layers over this container.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firebase/genkit/go/genkit"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/retrieval"
	"github.com/docent-ai/docent/internal/vecindex"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Backends. Genkit and Ollama are nil unless a cloud or local
	// provider respectively is selected.
	Pool   *pgxpool.Pool
	Genkit *genkit.Genkit
	Ollama *ollama.Client

	// Domain components.
	Chunker   *chunker.Chunker
	Embedder  embedding.Provider
	Knowledge *knowledge.Store
	Sessions  *memory.Store
	Indexes   *vecindex.Manager
	Retriever *retrieval.Engine
	Answers   *answer.Orchestrator
	Assistant *assistant.Assistant

	// Lifecycle management.
	ctx          context.Context
	cancel       context.CancelFunc
	otelShutdown func()
}

// Close releases resources in reverse initialization order. It is safe
// to call on a partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.Pool != nil {
		a.Pool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	// Flush traces last so shutdown spans still make it out.
	if a.otelShutdown != nil {
		a.otelShutdown()
	}

	return nil
}
