package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/ollama"
)

// Local embeds text with a model served by Ollama on this host. The model
// fixes the output dimension; a mismatch against the configured width is
// reported on the first call and caught by VerifyDimension at startup.
type Local struct {
	client *ollama.Client
	model  string
	dim    int
}

// NewLocal creates a provider backed by the given Ollama client.
func NewLocal(client *ollama.Client, model string, dim int) *Local {
	return &Local{client: client, model: model, dim: dim}
}

// EmbedText returns the vector for a single text.
func (l *Local) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := l.client.Embeddings(ctx, l.model, text)
	if err != nil {
		return nil, classifyLocalError(err)
	}
	if len(vec) != l.dim {
		return nil, fmt.Errorf("model %q returned %d dimensions, configured for %d", l.model, len(vec), l.dim)
	}
	return vec, nil
}

// EmbedBatch embeds texts one at a time. Ollama has no batch endpoint.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := l.EmbedText(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured output width.
func (l *Local) Dimension() int { return l.dim }

// ProviderID returns the stable provider/model identifier.
func (l *Local) ProviderID() string { return config.ProviderLocal + "/" + l.model }

func classifyLocalError(err error) error {
	var statusErr *ollama.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case statusErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		default:
			// 4xx other than 429: wrong model, bad request. Not transient.
			return err
		}
	}
	// Connection refused, reset, timeout.
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
