package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docent-ai/docent/internal/vecindex"
)

// ToolListVectorIndexes is the index inspection tool name.
const ToolListVectorIndexes = "list_vector_indexes"

// registerIndexTools registers list_vector_indexes.
func (s *Server) registerIndexTools() error {
	listSchema, err := jsonschema.For[ListVectorIndexesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolListVectorIndexes, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolListVectorIndexes,
		Description: "List vector index descriptors with their dimension, metric, and lifecycle state. " +
			"Pass tenantId to inspect one tenant; omit it to list all.",
		InputSchema: listSchema,
	}, s.ListVectorIndexes)

	return nil
}

// ListVectorIndexesInput defines the input schema for list_vector_indexes.
type ListVectorIndexesInput struct {
	TenantID string `json:"tenantId,omitempty" jsonschema:"Restrict the listing to one tenant"`
}

// vectorIndexItem is one descriptor in the tool output.
type vectorIndexItem struct {
	TenantID  string `json:"tenantId"`
	Label     string `json:"label"`
	Property  string `json:"property"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	State     string `json:"state"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ListVectorIndexes handles the list_vector_indexes MCP tool call.
func (s *Server) ListVectorIndexes(ctx context.Context, _ *mcp.CallToolRequest, input ListVectorIndexesInput) (*mcp.CallToolResult, any, error) {
	var (
		descs []vecindex.Descriptor
		err   error
	)
	if input.TenantID != "" {
		descs, err = s.indexes.ListTenantIndexes(ctx, input.TenantID)
	} else {
		descs, err = s.indexes.ListIndexes(ctx)
	}
	if err != nil {
		return s.toolError(ToolListVectorIndexes, err)
	}

	items := make([]vectorIndexItem, len(descs))
	for i, desc := range descs {
		items[i] = vectorIndexItem{
			TenantID:  desc.TenantID,
			Label:     desc.Label,
			Property:  desc.Property,
			Dimension: desc.Dimension,
			Metric:    desc.Metric,
			State:     string(desc.State),
			CreatedAt: desc.CreatedAt.Format(time.RFC3339),
			UpdatedAt: desc.UpdatedAt.Format(time.RFC3339),
		}
	}

	return resultJSON(map[string]any{
		"items": items,
		"total": len(items),
	})
}
