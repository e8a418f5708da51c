// Package embedding converts text into fixed-length vectors behind a closed
// set of providers: cloud (Gemini via Genkit), local (Ollama), and stub.
//
// A deployment runs exactly one active provider, selected from configuration
// at startup. Historical chunks keep the provider id and dimension they were
// embedded with, so retired providers remain detectable without eager
// re-embedding.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/ollama"
)

// Sentinel errors for provider failures. Check with errors.Is().
var (
	// ErrProviderUnavailable indicates a transient backend failure
	// (network, timeout, 5xx). Safe to retry.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrQuotaExceeded indicates the backend rejected the call for quota
	// or rate-limit reasons. Never retried; surfaces to the caller.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrUnknownProvider indicates a provider kind outside the closed set.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Provider produces embeddings of a fixed dimension.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// EmbedText returns the vector for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the width of every vector the provider returns.
	Dimension() int

	// ProviderID identifies provider kind and model,
	// e.g. "cloud/gemini-embedding-001".
	ProviderID() string
}

// Deps carries the collaborators a provider may need. Only the fields the
// selected provider kind uses must be set.
type Deps struct {
	Genkit *genkit.Genkit
	Ollama *ollama.Client
	Logger *slog.Logger
	Retry  RetryConfig
}

// NewFromConfig builds the active provider for this process. The variant set
// is closed; anything else fails with ErrUnknownProvider. Cloud and local
// providers come wrapped with bounded retry on transient failures, while
// quota errors always pass through immediately.
func NewFromConfig(cfg config.EmbeddingConfig, deps Deps) (Provider, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := deps.Retry
	if retryCfg.MaxRetries == 0 && retryCfg.InitialInterval == 0 {
		retryCfg = DefaultRetryConfig()
	}

	switch cfg.Provider {
	case config.ProviderCloud:
		cloud, err := NewCloud(deps.Genkit, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		return newRetrier(cloud, retryCfg, logger), nil

	case config.ProviderLocal:
		if deps.Ollama == nil {
			return nil, fmt.Errorf("local embedding provider requires an ollama client")
		}
		return newRetrier(NewLocal(deps.Ollama, cfg.Model, cfg.Dimension), retryCfg, logger), nil

	case config.ProviderStub:
		return NewStub(cfg.Model, cfg.Dimension), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// VerifyDimension embeds a short probe and checks the provider returns
// vectors of its declared width. Run once at startup: a model producing a
// different dimension than configured is a configuration error, not a
// per-request condition.
func VerifyDimension(ctx context.Context, p Provider) error {
	vec, err := p.EmbedText(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("probing %s: %w", p.ProviderID(), err)
	}
	if len(vec) != p.Dimension() {
		return fmt.Errorf("provider %s returned %d dimensions, configured for %d",
			p.ProviderID(), len(vec), p.Dimension())
	}
	return nil
}
