package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/ollama"
)

// Local generates answers through a local Ollama server.
type Local struct {
	client *ollama.Client
	model  string
	opts   ollama.GenerateOptions
}

// NewLocal creates the local generator from the generation settings.
func NewLocal(client *ollama.Client, cfg config.GenerationConfig) (*Local, error) {
	if client == nil {
		return nil, fmt.Errorf("ollama client is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &Local{
		client: client,
		model:  cfg.Model,
		opts: ollama.GenerateOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
		},
	}, nil
}

// Generate implements Generator.
func (l *Local) Generate(ctx context.Context, prompt Prompt) (string, error) {
	opts := l.opts
	text, err := l.client.Generate(ctx, ollama.GenerateRequest{
		Model:   l.model,
		Prompt:  prompt.User,
		System:  prompt.System,
		Options: &opts,
	})
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

// Kind implements Generator.
func (l *Local) Kind() string { return config.ProviderLocal }
