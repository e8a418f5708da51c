package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/docent-ai/docent/internal/memory"
)

// sessionsHandler serves the conversation-session endpoints.
type sessionsHandler struct {
	store  *memory.Store
	logger *slog.Logger
}

// sessionItem is the JSON representation of a session in responses.
type sessionItem struct {
	ID        string `json:"id"`
	UserID    string `json:"userId,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// turnItem is the JSON representation of a turn in responses.
type turnItem struct {
	ID         string   `json:"id"`
	Seq        int      `json:"seq"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	SourceIDs  []string `json:"sourceIds"`
	Confidence float64  `json:"confidence"`
	Degraded   bool     `json:"degraded"`
	CreatedAt  string   `json:"createdAt"`
}

func toSessionItem(sess memory.Session) sessionItem {
	return sessionItem{
		ID:        sess.ID.String(),
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
	}
}

func toTurnItem(turn memory.Turn) turnItem {
	sourceIDs := make([]string, len(turn.CitedSourceIDs))
	for i, id := range turn.CitedSourceIDs {
		sourceIDs[i] = id.String()
	}
	return turnItem{
		ID:         turn.ID.String(),
		Seq:        turn.Seq,
		Question:   turn.Question,
		Answer:     turn.Answer,
		SourceIDs:  sourceIDs,
		Confidence: turn.Confidence,
		Degraded:   turn.Degraded,
		CreatedAt:  turn.CreatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/v1/sessions — returns the tenant's sessions,
// most recently active first.
func (h *sessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	limit := parseIntParam(r, "limit", memory.DefaultListLimit, 1, memory.MaxListLimit)

	sessions, err := h.store.ListSessions(r.Context(), tenant, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	items := make([]sessionItem, len(sessions))
	for i, sess := range sessions {
		items[i] = toSessionItem(sess)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// get handles GET /api/v1/sessions/{id} — returns a single session.
func (h *sessionsHandler) get(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return
	}

	sess, err := h.store.GetSession(r.Context(), tenant, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionItem(sess))
}

// turns handles GET /api/v1/sessions/{id}/turns — returns a session's
// turns in chronological order.
func (h *sessionsHandler) turns(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return
	}

	limit := parseIntParam(r, "limit", memory.DefaultListLimit, 1, memory.MaxListLimit)

	turns, err := h.store.ListTurns(r.Context(), tenant, id, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	items := make([]turnItem, len(turns))
	for i, turn := range turns {
		items[i] = toTurnItem(turn)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// delete handles DELETE /api/v1/sessions/{id} — removes a session and,
// via cascade, its turns.
func (h *sessionsHandler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing_tenant", "tenant query parameter is required")
		return
	}

	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return
	}

	if err := h.store.DeleteSession(r.Context(), tenant, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
