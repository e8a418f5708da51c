package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/vecindex"
)

// sourceCols is the standard SELECT column list for source scans.
const sourceCols = `id, tenant_id, title, origin, tags, created_at`

const (
	insertSourceSQL = `INSERT INTO sources (tenant_id, title, origin, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	getSourceSQL = `SELECT ` + sourceCols + ` FROM sources WHERE tenant_id = $1 AND id = $2`

	listSourcesSQL = `SELECT ` + sourceCols + ` FROM sources
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	deleteSourceSQL = `DELETE FROM sources WHERE tenant_id = $1 AND id = $2`

	insertChunkSQL = `INSERT INTO chunks (source_id, tenant_id, content, token_start, token_end, embedding, provider_id, embedding_dim)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// indexForWriteSQL reads the descriptor a write must agree with.
	indexForWriteSQL = `SELECT dimension, state FROM vector_indexes WHERE tenant_id = $1 AND label = $2`

	advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	countSourcesSQL = `SELECT count(*) FROM sources WHERE tenant_id = $1`
	countChunksSQL  = `SELECT count(*) FROM chunks WHERE tenant_id = $1`

	// searchSQLTemplate takes the metric operator. Distance sorts
	// ascending; ties break toward the newest source.
	searchSQLTemplate = `SELECT c.id, c.source_id, c.tenant_id, c.content, c.token_start, c.token_end,
		c.provider_id, c.embedding_dim, c.created_at,
		s.title, s.created_at,
		c.embedding %s $1 AS distance
	FROM chunks c
	JOIN sources s ON s.id = c.source_id
	WHERE c.tenant_id = $2 AND c.embedding_dim = $3
	ORDER BY distance ASC, s.created_at DESC
	LIMIT $4`

	// searchByTagsSQLTemplate additionally requires the source to share a
	// tag with the filter (array overlap).
	searchByTagsSQLTemplate = `SELECT c.id, c.source_id, c.tenant_id, c.content, c.token_start, c.token_end,
		c.provider_id, c.embedding_dim, c.created_at,
		s.title, s.created_at,
		c.embedding %s $1 AS distance
	FROM chunks c
	JOIN sources s ON s.id = c.source_id
	WHERE c.tenant_id = $2 AND c.embedding_dim = $3 AND s.tags && $5
	ORDER BY distance ASC, s.created_at DESC
	LIMIT $4`
)

// List limits for sources.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Store persists sources and chunks in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// InsertSource records a new source and returns it with its generated id.
func (s *Store) InsertSource(ctx context.Context, src Source) (Source, error) {
	if src.TenantID == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if src.Title == "" {
		return Source{}, fmt.Errorf("source title is required")
	}
	if src.Tags == nil {
		src.Tags = []string{}
	}

	err := s.pool.QueryRow(ctx, insertSourceSQL,
		src.TenantID, src.Title, src.Origin, src.Tags,
	).Scan(&src.ID, &src.CreatedAt)
	if err != nil {
		return Source{}, fmt.Errorf("inserting source: %w", err)
	}
	return src, nil
}

// ChunkInput is one chunk ready to persist.
type ChunkInput struct {
	Text       string
	TokenStart int
	TokenEnd   int
	Embedding  []float32
}

// InsertChunksParams carries one ingestion write.
type InsertChunksParams struct {
	TenantID   string
	SourceID   uuid.UUID
	IndexLabel string
	ProviderID string
	Dimension  int
	Chunks     []ChunkInput
}

// InsertChunks persists a source's chunks atomically. The write re-checks
// the tenant's index descriptor inside the transaction, under the same
// advisory lock the lifecycle operations take: a dimension disagreement
// fails with *vecindex.DimensionMismatchError, and a descriptor that is
// not Active rejects the write rather than racing a migration.
func (s *Store) InsertChunks(ctx context.Context, params InsertChunksParams) error {
	if params.TenantID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if params.SourceID == uuid.Nil {
		return fmt.Errorf("source id is required")
	}
	if params.IndexLabel == "" {
		return vecindex.ErrMissingLabel
	}
	if len(params.Chunks) == 0 {
		return fmt.Errorf("at least one chunk is required")
	}
	for i, c := range params.Chunks {
		if len(c.Embedding) != params.Dimension {
			return fmt.Errorf("chunk %d embedding has %d dimensions, want %d", i, len(c.Embedding), params.Dimension)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, params.TenantID+"/"+params.IndexLabel); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	var (
		dim   int
		state vecindex.State
	)
	err = tx.QueryRow(ctx, indexForWriteSQL, params.TenantID, params.IndexLabel).Scan(&dim, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", params.TenantID, params.IndexLabel, vecindex.ErrIndexNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading index descriptor: %w", err)
	}
	if dim != params.Dimension {
		return &vecindex.DimensionMismatchError{
			TenantID:  params.TenantID,
			Label:     params.IndexLabel,
			Existing:  dim,
			Requested: params.Dimension,
		}
	}
	if state != vecindex.StateActive {
		return fmt.Errorf("vector index %s/%s is %s; writes require an active index",
			params.TenantID, params.IndexLabel, state)
	}

	batch := &pgx.Batch{}
	for _, c := range params.Chunks {
		batch.Queue(insertChunkSQL,
			params.SourceID, params.TenantID, c.Text, c.TokenStart, c.TokenEnd,
			pgvector.NewVector(c.Embedding), params.ProviderID, params.Dimension)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range params.Chunks {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing chunk batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	s.logger.Debug("chunks inserted",
		"tenant", params.TenantID, "source_id", params.SourceID, "count", len(params.Chunks))
	return nil
}

// SearchParams carries one similarity search. Tags, when set, restrict
// hits to sources sharing at least one tag.
type SearchParams struct {
	TenantID  string
	Vector    []float32
	Dimension int
	Metric    string
	K         int
	Tags      []string
}

// Search returns the K nearest chunks for the tenant at the given
// dimension, ordered by distance then source recency. Zero matches is a
// normal empty result, not an error.
func (s *Store) Search(ctx context.Context, params SearchParams) ([]SearchHit, error) {
	if params.TenantID == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if len(params.Vector) != params.Dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, index holds %d", len(params.Vector), params.Dimension)
	}
	if params.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", params.K)
	}
	op, err := distanceOperator(params.Metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(searchSQLTemplate, op)
	args := []any{pgvector.NewVector(params.Vector), params.TenantID, params.Dimension, params.K}
	if len(params.Tags) > 0 {
		query = fmt.Sprintf(searchByTagsSQLTemplate, op)
		args = append(args, params.Tags)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]SearchHit, 0, params.K)
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(
			&h.ID, &h.SourceID, &h.TenantID, &h.Content, &h.TokenStart, &h.TokenEnd,
			&h.ProviderID, &h.Dimension, &h.CreatedAt,
			&h.SourceTitle, &h.SourceCreatedAt,
			&h.Distance,
		); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search hits: %w", err)
	}
	return hits, nil
}

// GetSource returns one source, or ErrSourceNotFound.
func (s *Store) GetSource(ctx context.Context, tenantID string, id uuid.UUID) (Source, error) {
	if tenantID == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrInvalidTenant)
	}

	var src Source
	err := s.pool.QueryRow(ctx, getSourceSQL, tenantID, id).Scan(
		&src.ID, &src.TenantID, &src.Title, &src.Origin, &src.Tags, &src.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Source{}, fmt.Errorf("%s: %w", id, ErrSourceNotFound)
	case err != nil:
		return Source{}, fmt.Errorf("querying source: %w", err)
	default:
		return src, nil
	}
}

// ListSources returns the tenant's sources, newest first. A non-positive
// limit falls back to DefaultListLimit; MaxListLimit is the ceiling.
func (s *Store) ListSources(ctx context.Context, tenantID string, limit int) ([]Source, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.pool.Query(ctx, listSourcesSQL, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.TenantID, &src.Title, &src.Origin, &src.Tags, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a source and, via cascade, its chunks.
func (s *Store) DeleteSource(ctx context.Context, tenantID string, id uuid.UUID) error {
	if tenantID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenant)
	}

	tag, err := s.pool.Exec(ctx, deleteSourceSQL, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrSourceNotFound)
	}
	return nil
}

// TenantStats counts a tenant's stored material.
type TenantStats struct {
	Sources int64 `json:"sources"`
	Chunks  int64 `json:"chunks"`
}

// Stats returns source and chunk counts for the tenant.
func (s *Store) Stats(ctx context.Context, tenantID string) (TenantStats, error) {
	if tenantID == "" {
		return TenantStats{}, fmt.Errorf("%w: empty", ErrInvalidTenant)
	}

	var stats TenantStats
	if err := s.pool.QueryRow(ctx, countSourcesSQL, tenantID).Scan(&stats.Sources); err != nil {
		return TenantStats{}, fmt.Errorf("counting sources: %w", err)
	}
	if err := s.pool.QueryRow(ctx, countChunksSQL, tenantID).Scan(&stats.Chunks); err != nil {
		return TenantStats{}, fmt.Errorf("counting chunks: %w", err)
	}
	return stats, nil
}

// distanceOperator maps a similarity metric onto its pgvector operator.
// The operator is interpolated into SQL, so the set stays closed here.
func distanceOperator(metric string) (string, error) {
	switch metric {
	case config.MetricCosine:
		return "<=>", nil
	case config.MetricL2:
		return "<->", nil
	case config.MetricDot:
		return "<#>", nil
	}
	return "", fmt.Errorf("unknown similarity metric %q", metric)
}
