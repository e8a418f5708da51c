package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/vecindex"
)

// indexesHandler serves the operator surface for vector index descriptors.
// Ensure always applies the configured dimension and metric; a tenant
// whose active descriptor disagrees gets a 409, never a silent recreate.
type indexesHandler struct {
	manager   *vecindex.Manager
	rag       config.RAGConfig
	dimension int
	logger    *slog.Logger
}

// ensureRequest is the body of POST /api/v1/indexes. Label empty takes
// the configured index label.
type ensureRequest struct {
	TenantID string `json:"tenantId"`
	Label    string `json:"label,omitempty"`
}

// indexItem is the JSON representation of a descriptor in responses.
type indexItem struct {
	TenantID  string `json:"tenantId"`
	Label     string `json:"label"`
	Property  string `json:"property"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	State     string `json:"state"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toIndexItem(desc vecindex.Descriptor) indexItem {
	return indexItem{
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

// ensure handles POST /api/v1/indexes — creates the tenant's descriptor
// if absent, verifies it otherwise. Idempotent.
func (h *indexesHandler) ensure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := decodeJSON(w, r, maxAdminBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	label := req.Label
	if label == "" {
		label = h.rag.IndexLabel
	}

	desc, err := h.manager.EnsureIndex(r.Context(), req.TenantID, label,
		vecindex.DefaultProperty, h.dimension, h.rag.Metric)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toIndexItem(desc))
}

// list handles GET /api/v1/indexes — returns descriptors for one tenant
// when ?tenant= is given, or across all tenants otherwise.
func (h *indexesHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		descs []vecindex.Descriptor
		err   error
	)
	if tenant := tenantParam(r); tenant != "" {
		descs, err = h.manager.ListTenantIndexes(r.Context(), tenant)
	} else {
		descs, err = h.manager.ListIndexes(r.Context())
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	items := make([]indexItem, len(descs))
	for i, desc := range descs {
		items[i] = toIndexItem(desc)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// constraints handles GET /api/v1/constraints — lists the declared
// constraints on the core tables.
func (h *indexesHandler) constraints(w http.ResponseWriter, r *http.Request) {
	constraints, err := h.manager.ListConstraints(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": constraints,
		"total": len(constraints),
	})
}

// schema handles GET /api/v1/schema — validates the pgvector extension
// and required tables. An incomplete schema reports 503 so deploy checks
// fail loudly.
func (h *indexesHandler) schema(w http.ResponseWriter, r *http.Request) {
	report, err := h.manager.ValidateSchema(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
