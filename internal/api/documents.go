package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/knowledge"
)

// Request body caps. Documents carry whole texts; everything else is small.
const (
	maxDocumentBytes = 10 << 20 // 10 MiB
	maxQueryBytes    = 1 << 20  // 1 MiB
	maxAdminBytes    = 64 << 10 // 64 KiB
)

// tenantParam reads the tenant id from the query string.
func tenantParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("tenant"))
}

// pathID parses the {id} path value as a UUID.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

// documentsHandler serves the ingestion and source-management endpoints.
type documentsHandler struct {
	assistant *assistant.Assistant
	store     *knowledge.Store
	logger    *slog.Logger
}

// ingestRequest is the body of POST /api/v1/documents.
type ingestRequest struct {
	TenantID string   `json:"tenantId"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Tags     []string `json:"tags,omitempty"`
	Origin   string   `json:"origin,omitempty"`
}

// ingestResponse reports what ingestion stored.
type ingestResponse struct {
	SourceID   string `json:"sourceId"`
	ChunkCount int    `json:"chunkCount"`
}

// documentItem is the JSON representation of a source in responses.
type documentItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Origin    string   `json:"origin,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

func toDocumentItem(src knowledge.Source) documentItem {
	return documentItem{
		ID:        src.ID.String(),
		Title:     src.Title,
		Origin:    src.Origin,
		Tags:      src.Tags,
		CreatedAt: src.CreatedAt.Format(time.RFC3339),
	}
}

// create handles POST /api/v1/documents — chunks, embeds, and stores a document.
func (h *documentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, maxDocumentBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.assistant.Ingest(r.Context(), assistant.IngestRequest{
		TenantID: req.TenantID,
		Title:    req.Title,
		Text:     req.Text,
		Tags:     req.Tags,
		Origin:   req.Origin,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		SourceID:   result.SourceID.String(),
		ChunkCount: result.ChunkCount,
	})
}

// list handles GET /api/v1/documents — returns the tenant's sources, newest first.
func (h *documentsHandler) list(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	limit := parseIntParam(r, "limit", knowledge.DefaultListLimit, 1, knowledge.MaxListLimit)

	sources, err := h.store.ListSources(r.Context(), tenant, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	items := make([]documentItem, len(sources))
	for i, src := range sources {
		items[i] = toDocumentItem(src)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// get handles GET /api/v1/documents/{id} — returns a single source.
func (h *documentsHandler) get(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "document id must be a UUID")
		return
	}

	src, err := h.store.GetSource(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentItem(src))
}

// delete handles DELETE /api/v1/documents/{id} — removes a source and its chunks.
func (h *documentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "document id must be a UUID")
		return
	}

	if err := h.store.DeleteSource(r.Context(), tenant, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
