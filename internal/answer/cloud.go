package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/docent-ai/docent/internal/config"
)

// Cloud generates answers through Genkit's Google AI plugin.
type Cloud struct {
	genkit *genkit.Genkit
	model  string
}

// NewCloud creates the cloud generator. model is the provider-qualified
// name, e.g. "googleai/gemini-2.5-flash".
func NewCloud(g *genkit.Genkit, model string) (*Cloud, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &Cloud{genkit: g, model: model}, nil
}

// Generate implements Generator.
func (c *Cloud) Generate(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.model),
		ai.WithSystem(prompt.System),
		ai.WithPrompt(prompt.User),
	)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

// Kind implements Generator.
func (c *Cloud) Kind() string { return config.ProviderCloud }
