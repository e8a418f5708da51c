package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/retrieval"
)

// queryHandler serves the question-answering endpoint.
type queryHandler struct {
	assistant *assistant.Assistant
	logger    *slog.Logger
}

// queryRequest is the body of POST /api/v1/query. SessionID empty starts
// a fresh session; MemoryWindow zero takes the configured budget and a
// negative value disables history. BestEffort opts into extractive
// partial results when the time budget dies mid-pipeline.
type queryRequest struct {
	TenantID     string   `json:"tenantId"`
	Question     string   `json:"question"`
	K            int      `json:"k,omitempty"`
	SessionID    string   `json:"sessionId,omitempty"`
	UserID       string   `json:"userId,omitempty"`
	MemoryWindow int      `json:"memoryWindow,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	BestEffort   bool     `json:"bestEffort,omitempty"`
	WithResults  bool     `json:"withResults,omitempty"`
}

// resultItem is one retrieved passage behind a citation.
type resultItem struct {
	SourceID    string  `json:"sourceId"`
	SourceTitle string  `json:"sourceTitle"`
	Content     string  `json:"content"`
	TokenStart  int     `json:"tokenStart"`
	TokenEnd    int     `json:"tokenEnd"`
	Similarity  float64 `json:"similarity"`
	Confidence  float64 `json:"confidence"`
}

// queryResponse is the answer with its citations.
type queryResponse struct {
	Answer     string       `json:"answer"`
	SourceIDs  []string     `json:"sourceIds"`
	Confidence float64      `json:"confidence"`
	SessionID  string       `json:"sessionId"`
	Degraded   bool         `json:"degraded"`
	Results    []resultItem `json:"results,omitempty"`
}

func toResultItems(results []retrieval.Result) []resultItem {
	items := make([]resultItem, len(results))
	for i, res := range results {
		items[i] = resultItem{
			SourceID:    res.SourceID.String(),
			SourceTitle: res.SourceTitle,
			Content:     res.Content,
			TokenStart:  res.TokenStart,
			TokenEnd:    res.TokenEnd,
			Similarity:  res.Similarity,
			Confidence:  res.Confidence,
		}
	}
	return items
}

// ask handles POST /api/v1/query — answers a question from the tenant's
// knowledge and records the turn in the session.
func (h *queryHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, maxQueryBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	var sessionID *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "sessionId must be a UUID")
			return
		}
		sessionID = &id
	}

	result, err := h.assistant.Query(r.Context(), assistant.QueryRequest{
		TenantID:     req.TenantID,
		Question:     req.Question,
		K:            req.K,
		SessionID:    sessionID,
		UserID:       req.UserID,
		MemoryWindow: req.MemoryWindow,
		Tags:         req.Tags,
		BestEffort:   req.BestEffort,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	sourceIDs := make([]string, len(result.SourceIDs))
	for i, id := range result.SourceIDs {
		sourceIDs[i] = id.String()
	}

	resp := queryResponse{
		Answer:     result.Answer,
		SourceIDs:  sourceIDs,
		Confidence: result.Confidence,
		SessionID:  result.SessionID.String(),
		Degraded:   result.Degraded,
	}
	if req.WithResults {
		resp.Results = toResultItems(result.Results)
	}

	writeJSON(w, http.StatusOK, resp)
}
