package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/vecindex"
)

// resultJSON marshals data into a text content result. All tool output is
// JSON; clients parse it.
func resultJSON(data any) (*mcp.CallToolResult, any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

// toolError converts a service failure into an MCP response.
//
// Caller-class failures (bad input, unknown resources, dimension conflicts,
// exhausted budgets, unavailable providers) become IsError results with a
// "[code] message" body, so agents can read the failure and adjust. Anything
// else is logged in full server-side and returned as a bare error; the SDK
// reports it to the client with only the text given here, so internal detail
// never crosses the protocol boundary.
func (s *Server) toolError(toolName string, err error) (*mcp.CallToolResult, any, error) {
	if code, ok := userErrorCode(err); ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("[%s] %s", code, err.Error()),
			}},
			IsError: true,
		}, nil, nil
	}

	s.logger.Error("mcp tool failed", "tool", toolName, "error", err)
	return nil, nil, fmt.Errorf("%s failed: internal error", toolName)
}

// userErrorCode classifies failures the caller can act on. The codes match
// the HTTP API's error envelope so both surfaces speak one vocabulary.
func userErrorCode(err error) (string, bool) {
	var mismatch *vecindex.DimensionMismatchError
	var genFailed *answer.GenerationFailedError

	switch {
	case errors.Is(err, assistant.ErrInput),
		errors.Is(err, knowledge.ErrInvalidTenant),
		errors.Is(err, chunker.ErrEmptyInput),
		errors.Is(err, memory.ErrMissingTenant),
		errors.Is(err, memory.ErrEmptyQuestion),
		errors.Is(err, vecindex.ErrMissingTenant),
		errors.Is(err, vecindex.ErrMissingLabel):
		return "invalid_input", true
	case errors.Is(err, knowledge.ErrSourceNotFound):
		return "source_not_found", true
	case errors.Is(err, memory.ErrSessionNotFound):
		return "session_not_found", true
	case errors.Is(err, vecindex.ErrIndexNotFound):
		return "index_not_found", true
	case errors.As(err, &mismatch):
		return "dimension_mismatch", true
	case errors.Is(err, assistant.ErrTimeout):
		return "query_timeout", true
	case errors.Is(err, embedding.ErrProviderUnavailable),
		errors.Is(err, embedding.ErrQuotaExceeded),
		errors.As(err, &genFailed):
		return "provider_failed", true
	default:
		return "", false
	}
}
