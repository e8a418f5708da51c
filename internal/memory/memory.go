// Package memory stores conversational sessions and their turns.
//
// A session is a tenant-scoped conversation thread created lazily on the
// first query that carries no session id. Turns are append-only and
// strictly ordered by a per-session sequence number assigned under an
// advisory lock, so concurrent appends can never interleave or reuse a
// position. Context assembly walks turns newest first and drops whole
// turns from the old end of the window until the token budget fits; a
// turn is never truncated in the middle.
package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound indicates the session does not exist for the tenant.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingTenant indicates the request carried no tenant id.
	ErrMissingTenant = errors.New("tenant id is required")

	// ErrEmptyQuestion indicates a turn append without a question.
	ErrEmptyQuestion = errors.New("turn question is required")
)

// Session is one conversation thread.
type Session struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one question/answer exchange within a session. Seq starts at 1
// and grows by one per append.
type Turn struct {
	ID             uuid.UUID   `json:"id"`
	SessionID      uuid.UUID   `json:"session_id"`
	Seq            int         `json:"seq"`
	Question       string      `json:"question"`
	Answer         string      `json:"answer"`
	CitedSourceIDs []uuid.UUID `json:"cited_source_ids,omitempty"`
	Confidence     float64     `json:"confidence"`
	Degraded       bool        `json:"degraded"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TurnInput carries one exchange to append.
type TurnInput struct {
	Question       string
	Answer         string
	CitedSourceIDs []uuid.UUID
	Confidence     float64
	Degraded       bool
}

// SessionStats reports a tenant's stored conversation volume.
type SessionStats struct {
	Sessions int64 `json:"sessions"`
	Turns    int64 `json:"turns"`
}
