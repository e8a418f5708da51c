// Package knowledge stores ingested sources and their embedded chunks,
// and runs tenant-scoped similarity searches over them.
//
// Every read and write is filtered by tenant id; there is no unscoped
// query path. Chunks additionally carry the provider id and dimension
// they were embedded with, so history from retired providers stays
// detectable and is never compared against vectors of another width.
package knowledge

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxTenantIDLength bounds tenant identifiers.
const MaxTenantIDLength = 64

// Sentinel errors for knowledge operations. Check with errors.Is().
var (
	// ErrSourceNotFound indicates the source does not exist for the tenant.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidTenant indicates a malformed tenant id.
	ErrInvalidTenant = errors.New("invalid tenant id")
)

// Source is one logical document handed over by the parsing collaborator.
type Source struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Title     string    `json:"title"`
	Origin    string    `json:"origin,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one embedded slice of a source. Chunks are created once per
// ingestion and never mutated; re-ingestion writes new chunks.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	SourceID   uuid.UUID `json:"source_id"`
	TenantID   string    `json:"tenant_id"`
	Content    string    `json:"content"`
	TokenStart int       `json:"token_start"`
	TokenEnd   int       `json:"token_end"`
	ProviderID string    `json:"provider_id"`
	Dimension  int       `json:"dimension"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchHit is one chunk returned by a similarity search, joined with its
// source and carrying the raw pgvector distance for the metric searched.
type SearchHit struct {
	Chunk
	SourceTitle     string
	SourceCreatedAt time.Time
	Distance        float64
}

// ValidateTenantID enforces the tenant id format: a letter followed by
// letters, digits, underscores, or hyphens, at most MaxTenantIDLength
// bytes. Applied at user-facing boundaries; storage assumes it ran.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if len(tenantID) > MaxTenantIDLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrInvalidTenant, len(tenantID), MaxTenantIDLength)
	}

	first := tenantID[0]
	if (first < 'a' || first > 'z') && (first < 'A' || first > 'Z') {
		return fmt.Errorf("%w: must start with a letter", ErrInvalidTenant)
	}
	for i := 1; i < len(tenantID); i++ {
		c := tenantID[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return fmt.Errorf("%w: character %q at position %d", ErrInvalidTenant, c, i)
		}
	}
	return nil
}
