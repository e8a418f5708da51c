// Package vecindex manages per-tenant vector index descriptors: creation,
// validation, dimension-mismatch detection, and the explicit reindex
// workflow that migrates a tenant to a new embedding dimension.
//
// A descriptor is the authoritative record of which dimension and metric a
// tenant's embeddings must carry. Chunks whose dimension disagrees with the
// active descriptor are rejected at write time and filtered out at search
// time; the descriptor itself is never dropped or recreated implicitly.
//
// Lifecycle: Absent → Creating → Active → (MismatchDetected | Active), and
// Active → Reindexing → Active on explicit migration. Nothing leaves
// MismatchDetected without an operator running Reindex.
package vecindex

import (
	"errors"
	"fmt"
	"time"
)

// State names one phase of an index lifecycle.
type State string

const (
	StateCreating         State = "creating"
	StateActive           State = "active"
	StateMismatchDetected State = "mismatch_detected"
	StateReindexing       State = "reindexing"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateCreating, StateActive, StateMismatchDetected, StateReindexing:
		return true
	}
	return false
}

// DefaultProperty is the vector column a descriptor covers unless the
// caller names another.
const DefaultProperty = "embedding"

// Descriptor records one tenant-scoped vector index.
type Descriptor struct {
	TenantID  string    `json:"tenant_id"`
	Label     string    `json:"label"`
	Property  string    `json:"property"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sentinel errors for index operations. Check with errors.Is().
var (
	// ErrIndexNotFound indicates no descriptor exists for the tenant/label.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrMissingTenant indicates an operation without a tenant id.
	ErrMissingTenant = errors.New("tenant id is required")

	// ErrMissingLabel indicates an operation without an index label.
	ErrMissingLabel = errors.New("index label is required")
)

// DimensionMismatchError reports an operation against an index whose
// dimension differs from the request. It always names both dimensions and
// is never resolved automatically; the way out is an explicit Reindex.
type DimensionMismatchError struct {
	TenantID  string
	Label     string
	Existing  int
	Requested int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector index %s/%s holds %d-dimensional embeddings, request carries %d",
		e.TenantID, e.Label, e.Existing, e.Requested)
}
