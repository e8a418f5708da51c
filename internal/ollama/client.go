// Package ollama is a minimal HTTP client for a local Ollama server. It is
// shared by the local embedding provider and the local answer generator.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default client settings.
const (
	// DefaultBaseURL is the standard local Ollama endpoint.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTimeout bounds a single API call. Generation against large
	// local models can run for minutes.
	DefaultTimeout = 2 * time.Minute
)

// StatusError is a non-2xx reply from the Ollama API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: status %d: %s", e.Code, e.Body)
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	// BaseURL is the Ollama API base URL.
	BaseURL string

	// Timeout bounds each API call.
	Timeout time.Duration
}

// Client talks to one Ollama server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// embedRequest is the /api/embeddings request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the /api/embeddings response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embeddings returns the embedding vector for prompt under the given model.
func (c *Client) Embeddings(ctx context.Context, model, prompt string) ([]float32, error) {
	body, err := c.post(ctx, "/api/embeddings", embedRequest{Model: model, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	var resp embedResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// GenerateOptions are the model options forwarded with a generate call.
type GenerateOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateRequest is the /api/generate request format.
type GenerateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	System  string           `json:"system,omitempty"`
	Stream  bool             `json:"stream"`
	Options *GenerateOptions `json:"options,omitempty"`
}

// generateResponse is one frame of the /api/generate reply. Ollama streams
// newline-delimited JSON objects until Done.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a completion and returns the full response text. Both
// streaming and non-streaming replies decode through the same loop.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = body.Close()
	}()

	var result strings.Builder
	dec := json.NewDecoder(body)
	for {
		var frame generateResponse
		if err := dec.Decode(&frame); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("decoding generate response: %w", err)
		}
		result.WriteString(frame.Response)
		if frame.Done {
			break
		}
	}
	return result.String(), nil
}

// Ping checks connectivity via /api/tags without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinging ollama: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	return nil
}

// post sends a JSON request and returns the response body on a 200 reply.
// The caller owns closing the returned body.
func (c *Client) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		return nil, readStatusError(resp)
	}
	return resp.Body, nil
}

func readStatusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &StatusError{Code: resp.StatusCode}
	}
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
