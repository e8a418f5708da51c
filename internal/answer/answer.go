// Package answer turns retrieved chunks and conversation history into a
// cited response.
//
// The orchestrator routes each request to the configured generation
// backend: cloud (Genkit), local (Ollama), or stub mode, which skips
// generation entirely and returns the top retrieved snippets verbatim.
// Stub mode exists so the ingestion/retrieval path can be exercised and
// demoed without any generation cost or external dependency. When a real
// backend fails and stub fallback is enabled, the orchestrator degrades
// to the extractive answer and marks it as such; otherwise it surfaces a
// *GenerationFailedError carrying the retrieved chunks so callers can
// still show citations without prose.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/retrieval"
)

// ErrUnknownProvider indicates a generation provider name outside the
// supported set.
var ErrUnknownProvider = errors.New("unknown generation provider")

// KindStub identifies answers produced without a generation backend.
const KindStub = config.ProviderStub

// Answer is the orchestrator's result. Confidence carries the top
// retrieval confidence; Degraded marks answers served extractively after
// a backend failure.
type Answer struct {
	Text           string      `json:"text"`
	CitedSourceIDs []uuid.UUID `json:"cited_source_ids"`
	Confidence     float64     `json:"confidence"`
	Degraded       bool        `json:"degraded"`
	Provider       string      `json:"provider"`
}

// Generator produces prose from an assembled prompt.
type Generator interface {
	// Generate returns the model's response text for the prompt.
	Generate(ctx context.Context, prompt Prompt) (string, error)

	// Kind names the backend ("cloud" or "local").
	Kind() string
}

// GenerationFailedError reports a failed generation with the retrieved
// chunks still attached, so the caller can surface where the answer
// would have come from.
type GenerationFailedError struct {
	Provider string
	Results  []retrieval.Result
	Err      error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generating answer via %s: %v", e.Provider, e.Err)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// Deps carries the shared clients a generator may need.
type Deps struct {
	Genkit *genkit.Genkit
	Ollama *ollama.Client
	Logger *slog.Logger
}

// NewGeneratorFromConfig resolves the configured generation backend
// once at startup. Stub mode (explicit, or forced by rag_only) returns a
// nil Generator: the orchestrator then answers extractively without
// calling any model.
func NewGeneratorFromConfig(cfg config.GenerationConfig, deps Deps) (Generator, error) {
	if cfg.RAGOnly {
		return nil, nil
	}
	switch cfg.Provider {
	case config.ProviderStub:
		return nil, nil
	case config.ProviderCloud:
		return NewCloud(deps.Genkit, cfg.FullModelName())
	case config.ProviderLocal:
		return NewLocal(deps.Ollama, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
