package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/docent-ai/docent/internal/config"
)

// Client-side pacing for Gemini calls, shared with the generation side.
const (
	cloudRequestsPerSecond = 10
	cloudBurst             = 30
)

// Cloud embeds text through the Gemini API via Genkit. Every request pins
// OutputDimensionality so the model truncates to the configured width
// (Matryoshka representation), keeping stored vectors uniform.
type Cloud struct {
	embedder ai.Embedder
	model    string
	dim      int32
	limiter  *rate.Limiter
}

// NewCloud resolves the Gemini embedder for model from an initialized
// Genkit instance.
func NewCloud(g *genkit.Genkit, model string, dim int) (*Cloud, error) {
	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		return nil, fmt.Errorf("%w: no gemini embedder for model %q", ErrProviderUnavailable, model)
	}
	return &Cloud{
		embedder: embedder,
		model:    model,
		dim:      int32(dim),
		limiter:  rate.NewLimiter(cloudRequestsPerSecond, cloudBurst),
	}, nil
}

// EmbedText returns the vector for a single text.
func (c *Cloud) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API call.
func (c *Cloud) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts)
}

func (c *Cloud) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	dim := c.dim
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, classifyCloudError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) != int(c.dim) {
			return nil, fmt.Errorf("gemini returned %d dimensions, configured for %d", len(e.Embedding), c.dim)
		}
		out[i] = e.Embedding
	}
	return out, nil
}

// Dimension returns the configured output width.
func (c *Cloud) Dimension() int { return int(c.dim) }

// ProviderID returns the stable provider/model identifier.
func (c *Cloud) ProviderID() string { return config.ProviderCloud + "/" + c.model }

// classifyCloudError maps Gemini failures onto the package sentinels so the
// retry wrapper can tell quota exhaustion from transient faults. Quota is
// checked first: a 429 must never be retried.
func classifyCloudError(err error) error {
	msg := err.Error()
	if containsAny(msg, "429", "quota", "resource_exhausted", "resource exhausted", "rate limit") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	if containsAny(msg, "500", "502", "503", "504", "unavailable", "timeout", "deadline", "connection") {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
