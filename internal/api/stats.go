package api

import (
	"log/slog"
	"net/http"

	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/memory"
)

// statsHandler serves per-tenant usage statistics.
type statsHandler struct {
	knowledge *knowledge.Store
	sessions  *memory.Store
	logger    *slog.Logger
}

// statsResponse combines the stores' counts for one tenant.
type statsResponse struct {
	TenantID  string `json:"tenantId"`
	Documents int64  `json:"documents"`
	Chunks    int64  `json:"chunks"`
	Sessions  int64  `json:"sessions"`
	Turns     int64  `json:"turns"`
}

// get handles GET /api/v1/stats — returns document, chunk, session, and
// turn counts for the tenant.
func (h *statsHandler) get(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	kstats, err := h.knowledge.Stats(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	mstats, err := h.sessions.TenantStats(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TenantID:  tenant,
		Documents: kstats.Sources,
		Chunks:    kstats.Chunks,
		Sessions:  mstats.Sessions,
		Turns:     mstats.Turns,
	})
}
