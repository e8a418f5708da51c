package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docent-ai/docent/internal/assistant"
)

// Tool names exposed to MCP clients.
const (
	ToolAskKnowledge   = "ask_knowledge"
	ToolIngestDocument = "ingest_document"
)

// registerKnowledgeTools registers ask_knowledge and ingest_document.
func (s *Server) registerKnowledgeTools() error {
	askSchema, err := jsonschema.For[AskKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolAskKnowledge, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolAskKnowledge,
		Description: "Answer a question from a tenant's knowledge base using semantic retrieval. " +
			"Returns the answer, cited source ids, and a confidence score. " +
			"Pass the returned sessionId back in to continue a conversation.",
		InputSchema: askSchema,
	}, s.AskKnowledge)

	ingestSchema, err := jsonschema.For[IngestDocumentInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolIngestDocument, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolIngestDocument,
		Description: "Chunk, embed, and store a document in a tenant's knowledge base. " +
			"The document becomes searchable by ask_knowledge immediately.",
		InputSchema: ingestSchema,
	}, s.IngestDocument)

	return nil
}

// AskKnowledgeInput defines the input schema for ask_knowledge.
type AskKnowledgeInput struct {
	TenantID   string `json:"tenantId" jsonschema:"Tenant whose knowledge base to query"`
	Question   string `json:"question" jsonschema:"The question to answer"`
	K          int    `json:"k,omitempty" jsonschema:"How many passages to retrieve (0 = configured default)"`
	SessionID  string `json:"sessionId,omitempty" jsonschema:"Session UUID from a previous call to continue that conversation"`
	BestEffort bool   `json:"bestEffort,omitempty" jsonschema:"Return extractive partial results instead of failing when the time budget runs out"`
}

// askKnowledgeOutput mirrors the HTTP query response.
type askKnowledgeOutput struct {
	Answer     string   `json:"answer"`
	SourceIDs  []string `json:"sourceIds"`
	Confidence float64  `json:"confidence"`
	SessionID  string   `json:"sessionId"`
	Degraded   bool     `json:"degraded"`
}

// AskKnowledge handles the ask_knowledge MCP tool call.
func (s *Server) AskKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input AskKnowledgeInput) (*mcp.CallToolResult, any, error) {
	var sessionID *uuid.UUID
	if input.SessionID != "" {
		id, err := uuid.Parse(input.SessionID)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "[invalid_input] sessionId must be a UUID"}},
				IsError: true,
			}, nil, nil
		}
		sessionID = &id
	}

	result, err := s.assistant.Query(ctx, assistant.QueryRequest{
		TenantID:   input.TenantID,
		Question:   input.Question,
		K:          input.K,
		SessionID:  sessionID,
		BestEffort: input.BestEffort,
	})
	if err != nil {
		return s.toolError(ToolAskKnowledge, err)
	}

	sourceIDs := make([]string, len(result.SourceIDs))
	for i, id := range result.SourceIDs {
		sourceIDs[i] = id.String()
	}

	return resultJSON(askKnowledgeOutput{
		Answer:     result.Answer,
		SourceIDs:  sourceIDs,
		Confidence: result.Confidence,
		SessionID:  result.SessionID.String(),
		Degraded:   result.Degraded,
	})
}

// IngestDocumentInput defines the input schema for ingest_document.
type IngestDocumentInput struct {
	TenantID string   `json:"tenantId" jsonschema:"Tenant that owns the document"`
	Title    string   `json:"title" jsonschema:"Document title, shown alongside citations"`
	Text     string   `json:"text" jsonschema:"Full document text to chunk and embed"`
	Tags     []string `json:"tags,omitempty" jsonschema:"Optional tags for filtered retrieval"`
	Origin   string   `json:"origin,omitempty" jsonschema:"Where the document came from (url, path, system name)"`
}

// ingestDocumentOutput mirrors the HTTP ingest response.
type ingestDocumentOutput struct {
	SourceID   string `json:"sourceId"`
	ChunkCount int    `json:"chunkCount"`
}

// IngestDocument handles the ingest_document MCP tool call.
func (s *Server) IngestDocument(ctx context.Context, _ *mcp.CallToolRequest, input IngestDocumentInput) (*mcp.CallToolResult, any, error) {
	result, err := s.assistant.Ingest(ctx, assistant.IngestRequest{
		TenantID: input.TenantID,
		Title:    input.Title,
		Text:     input.Text,
		Tags:     input.Tags,
		Origin:   input.Origin,
	})
	if err != nil {
		return s.toolError(ToolIngestDocument, err)
	}

	return resultJSON(ingestDocumentOutput{
		SourceID:   result.SourceID.String(),
		ChunkCount: result.ChunkCount,
	})
}
