package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/vecindex"
)

// Server wraps the MCP SDK server around docent's application core.
type Server struct {
	mcpServer *mcp.Server
	assistant *assistant.Assistant
	indexes   *vecindex.Manager
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Assistant *assistant.Assistant
	Indexes   *vecindex.Manager
	Logger    *slog.Logger
}

// NewServer creates an MCP server with all docent tools registered.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Name == "":
		return nil, fmt.Errorf("server name is required")
	case cfg.Version == "":
		return nil, fmt.Errorf("server version is required")
	case cfg.Assistant == nil:
		return nil, fmt.Errorf("assistant is required")
	case cfg.Indexes == nil:
		return nil, fmt.Errorf("index manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		assistant: cfg.Assistant,
		indexes:   cfg.Indexes,
		logger:    logger,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerKnowledgeTools(); err != nil {
		return nil, fmt.Errorf("registering knowledge tools: %w", err)
	}
	if err := s.registerIndexTools(); err != nil {
		return nil, fmt.Errorf("registering index tools: %w", err)
	}

	return s, nil
}

// Run serves the MCP protocol on the given transport. It blocks until the
// context is canceled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
