// Package assistant wires the ingestion and question answering
// pipelines end to end.
//
// Ingest splits a document, embeds its chunks across a bounded worker
// pool, and stores them under the tenant's vector index. Query embeds
// the question, retrieves tenant-scoped context, generates (or
// extracts) an answer, and records the exchange in the session. Both
// paths run under explicit time budgets; nothing here blocks without a
// deadline.
package assistant

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/retrieval"
	"github.com/docent-ai/docent/internal/vecindex"
)

var (
	// ErrInput marks malformed ingestion or query payloads. Always
	// user-recoverable and returned synchronously.
	ErrInput = errors.New("invalid input")

	// ErrTimeout marks a request whose end-to-end budget ran out.
	ErrTimeout = errors.New("request timed out")
)

const (
	// ingestWorkers bounds concurrent chunk embedding for one document.
	// Submissions beyond the limit block the caller.
	ingestWorkers = 4

	// recordTurnTimeout bounds the history append that runs after the
	// request budget is spent.
	recordTurnTimeout = 5 * time.Second
)

// Deps carries the assistant's collaborators. Every field is required.
type Deps struct {
	Chunker   *chunker.Chunker
	Embedder  embedding.Provider
	Indexes   *vecindex.Manager
	Store     *knowledge.Store
	Retriever *retrieval.Engine
	Sessions  *memory.Store
	Answers   *answer.Orchestrator
	Logger    *slog.Logger
}

// Assistant is the application core behind the HTTP, MCP, and CLI
// surfaces.
//
// Assistant is safe for concurrent use by multiple goroutines.
type Assistant struct {
	chunker   *chunker.Chunker
	embedder  embedding.Provider
	indexes   *vecindex.Manager
	store     *knowledge.Store
	retriever *retrieval.Engine
	sessions  *memory.Store
	answers   *answer.Orchestrator
	cfg       *config.Config
	logger    *slog.Logger
}

// New creates an Assistant.
func New(deps Deps, cfg *config.Config) (*Assistant, error) {
	switch {
	case cfg == nil:
		return nil, config.ErrConfigNil
	case deps.Chunker == nil:
		return nil, fmt.Errorf("chunker is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedding provider is required")
	case deps.Indexes == nil:
		return nil, fmt.Errorf("index manager is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("knowledge store is required")
	case deps.Retriever == nil:
		return nil, fmt.Errorf("retrieval engine is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case deps.Answers == nil:
		return nil, fmt.Errorf("answer orchestrator is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Assistant{
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		indexes:   deps.Indexes,
		store:     deps.Store,
		retriever: deps.Retriever,
		sessions:  deps.Sessions,
		answers:   deps.Answers,
		cfg:       cfg,
		logger:    deps.Logger,
	}, nil
}

// validateTenant maps tenant id problems onto the input error kind.
func validateTenant(tenantID string) error {
	if err := knowledge.ValidateTenantID(tenantID); err != nil {
		return fmt.Errorf("%w: %v", ErrInput, err)
	}
	return nil
}
