package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docent-ai/docent/internal/config"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// descriptorCols is the standard SELECT column list for scanDescriptor.
const descriptorCols = `tenant_id, label, vector_property, dimension, metric, state, created_at, updated_at`

const (
	getDescriptorSQL = `SELECT ` + descriptorCols + ` FROM vector_indexes WHERE tenant_id = $1 AND label = $2`

	insertDescriptorSQL = `INSERT INTO vector_indexes (tenant_id, label, vector_property, dimension, metric, state)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// setStateSQL flips lifecycle state and reports the row timestamps.
	setStateSQL = `UPDATE vector_indexes SET state = $3, updated_at = now()
		WHERE tenant_id = $1 AND label = $2
		RETURNING created_at, updated_at`

	// advisoryLockSQL serializes lifecycle operations per tenant/label.
	// pg_advisory_xact_lock releases automatically at commit/rollback.
	advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	listIndexesSQL       = `SELECT ` + descriptorCols + ` FROM vector_indexes ORDER BY tenant_id, label`
	listTenantIndexesSQL = `SELECT ` + descriptorCols + ` FROM vector_indexes WHERE tenant_id = $1 ORDER BY label`

	startupConflictsSQL = `SELECT tenant_id, label, dimension FROM vector_indexes
		WHERE state = 'active' AND dimension <> $1
		ORDER BY tenant_id, label`

	listChunksForReindexSQL = `SELECT id, content FROM chunks
		WHERE tenant_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3`

	updateChunkEmbeddingSQL = `UPDATE chunks SET embedding = $1, embedding_dim = $2, provider_id = $3 WHERE id = $4`

	swapDescriptorSQL = `UPDATE vector_indexes SET dimension = $3, state = 'active', updated_at = now()
		WHERE tenant_id = $1 AND label = $2`
)

// reindexBatchSize bounds how many chunks one re-embedding round trips.
const reindexBatchSize = 64

// Manager owns the vector index lifecycle for all tenants.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(pool *pgxpool.Pool, logger *slog.Logger) (*Manager, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{pool: pool, logger: logger}, nil
}

// EnsureIndex creates the descriptor if absent or validates an existing
// one. It is idempotent: re-running with identical parameters is a no-op.
// A dimension that disagrees with an existing descriptor marks the index
// MismatchDetected (persisted) and returns a *DimensionMismatchError naming
// both dimensions; existing data is never dropped or recreated.
func (m *Manager) EnsureIndex(ctx context.Context, tenantID, label, property string, dimension int, metric string) (Descriptor, error) {
	if tenantID == "" {
		return Descriptor{}, ErrMissingTenant
	}
	if label == "" {
		return Descriptor{}, ErrMissingLabel
	}
	if property == "" {
		property = DefaultProperty
	}
	if dimension <= 0 {
		return Descriptor{}, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if !validMetric(metric) {
		return Descriptor{}, fmt.Errorf("unknown similarity metric %q", metric)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Serialize concurrent EnsureIndex calls for the same index so two
	// racing callers cannot both observe "absent".
	if _, lockErr := tx.Exec(ctx, advisoryLockSQL, tenantID+"/"+label); lockErr != nil {
		return Descriptor{}, fmt.Errorf("acquiring advisory lock: %w", lockErr)
	}

	desc, found, err := getDescriptor(ctx, tx, tenantID, label)
	if err != nil {
		return Descriptor{}, err
	}

	if !found {
		if _, err := tx.Exec(ctx, insertDescriptorSQL,
			tenantID, label, property, dimension, metric, StateCreating); err != nil {
			return Descriptor{}, fmt.Errorf("inserting index descriptor: %w", err)
		}
		desc = Descriptor{
			TenantID:  tenantID,
			Label:     label,
			Property:  property,
			Dimension: dimension,
			Metric:    metric,
			State:     StateActive,
		}
		if err := tx.QueryRow(ctx, setStateSQL, tenantID, label, StateActive).
			Scan(&desc.CreatedAt, &desc.UpdatedAt); err != nil {
			return Descriptor{}, fmt.Errorf("activating index descriptor: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return Descriptor{}, fmt.Errorf("committing index creation: %w", err)
		}
		m.logger.Info("vector index created",
			"tenant", tenantID, "label", label, "dimension", dimension, "metric", metric)
		return desc, nil
	}

	if desc.Dimension != dimension {
		// Persist the detection, then fail. Only an Active index flips;
		// MismatchDetected and Reindexing already record their own story.
		if desc.State == StateActive {
			if err := tx.QueryRow(ctx, setStateSQL, tenantID, label, StateMismatchDetected).
				Scan(&desc.CreatedAt, &desc.UpdatedAt); err != nil {
				return Descriptor{}, fmt.Errorf("marking dimension mismatch: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return Descriptor{}, fmt.Errorf("committing mismatch mark: %w", err)
			}
			m.logger.Warn("vector index dimension mismatch detected",
				"tenant", tenantID, "label", label,
				"existing_dimension", desc.Dimension, "requested_dimension", dimension)
		}
		return Descriptor{}, &DimensionMismatchError{
			TenantID:  tenantID,
			Label:     label,
			Existing:  desc.Dimension,
			Requested: dimension,
		}
	}

	if desc.Metric != metric {
		return Descriptor{}, fmt.Errorf("vector index %s/%s uses metric %q, request carries %q",
			tenantID, label, desc.Metric, metric)
	}
	if desc.Property != property {
		return Descriptor{}, fmt.Errorf("vector index %s/%s covers property %q, request carries %q",
			tenantID, label, desc.Property, property)
	}

	// A descriptor stuck in Creating means a prior create crashed before
	// activation; finish it here.
	if desc.State == StateCreating {
		if err := tx.QueryRow(ctx, setStateSQL, tenantID, label, StateActive).
			Scan(&desc.CreatedAt, &desc.UpdatedAt); err != nil {
			return Descriptor{}, fmt.Errorf("activating index descriptor: %w", err)
		}
		desc.State = StateActive
	}

	if err := tx.Commit(ctx); err != nil {
		return Descriptor{}, fmt.Errorf("committing index validation: %w", err)
	}
	return desc, nil
}

// DescribeIndex returns the current descriptor, or ErrIndexNotFound.
func (m *Manager) DescribeIndex(ctx context.Context, tenantID, label string) (Descriptor, error) {
	if tenantID == "" {
		return Descriptor{}, ErrMissingTenant
	}
	if label == "" {
		return Descriptor{}, ErrMissingLabel
	}
	desc, found, err := getDescriptor(ctx, m.pool, tenantID, label)
	if err != nil {
		return Descriptor{}, err
	}
	if !found {
		return Descriptor{}, fmt.Errorf("%s/%s: %w", tenantID, label, ErrIndexNotFound)
	}
	return desc, nil
}

// ListIndexes returns every descriptor across all tenants, ordered by
// tenant and label. Operator-facing introspection.
func (m *Manager) ListIndexes(ctx context.Context) ([]Descriptor, error) {
	rows, err := m.pool.Query(ctx, listIndexesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vector indexes: %w", err)
	}
	return scanDescriptors(rows)
}

// ListTenantIndexes returns the descriptors for one tenant.
func (m *Manager) ListTenantIndexes(ctx context.Context, tenantID string) ([]Descriptor, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	rows, err := m.pool.Query(ctx, listTenantIndexesSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing vector indexes for tenant: %w", err)
	}
	return scanDescriptors(rows)
}

// Reindexer supplies fresh embeddings during an explicit migration. The
// active embedding provider satisfies it.
type Reindexer interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ProviderID() string
}

// Reindex is the operator workflow that migrates an index to the
// provider's dimension: mark Reindexing, re-embed every chunk of the
// tenant in batches, then swap the descriptor dimension and return to
// Active. It is the only path out of MismatchDetected.
//
// Chunks re-embedded before a mid-run failure carry the new dimension and
// drop out of search until the swap completes; rerunning Reindex resumes
// the migration.
func (m *Manager) Reindex(ctx context.Context, tenantID, label string, provider Reindexer) (int, error) {
	if tenantID == "" {
		return 0, ErrMissingTenant
	}
	if label == "" {
		return 0, ErrMissingLabel
	}
	if provider == nil {
		return 0, fmt.Errorf("reindex provider is required")
	}

	if err := m.setStateLocked(ctx, tenantID, label, StateReindexing); err != nil {
		return 0, err
	}

	newDim := provider.Dimension()
	providerID := provider.ProviderID()
	total := 0
	lastID := uuid.Nil

	for {
		ids, texts, err := m.nextReindexBatch(ctx, tenantID, lastID)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		vecs, err := provider.EmbedBatch(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("re-embedding after %d chunks: %w", total, err)
		}
		if len(vecs) != len(ids) {
			return total, fmt.Errorf("provider returned %d vectors for %d chunks", len(vecs), len(ids))
		}

		if err := m.applyEmbeddings(ctx, ids, vecs, newDim, providerID); err != nil {
			return total, err
		}
		total += len(ids)
		lastID = ids[len(ids)-1]
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return total, fmt.Errorf("beginning swap transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()
	if _, err := tx.Exec(ctx, advisoryLockSQL, tenantID+"/"+label); err != nil {
		return total, fmt.Errorf("acquiring advisory lock: %w", err)
	}
	if _, err := tx.Exec(ctx, swapDescriptorSQL, tenantID, label, newDim); err != nil {
		return total, fmt.Errorf("swapping descriptor dimension: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return total, fmt.Errorf("committing descriptor swap: %w", err)
	}

	m.logger.Info("reindex complete",
		"tenant", tenantID, "label", label, "chunks", total,
		"dimension", newDim, "provider", providerID)
	return total, nil
}

// CheckStartupDimension is the startup guard: it fails when any Active
// descriptor disagrees with the configured embedding dimension, unless the
// operator set the explicit migration flag, in which case each conflict is
// only logged.
func (m *Manager) CheckStartupDimension(ctx context.Context, configured int, allowMigration bool) error {
	rows, err := m.pool.Query(ctx, startupConflictsSQL, configured)
	if err != nil {
		return fmt.Errorf("checking index dimensions: %w", err)
	}
	defer rows.Close()

	type conflict struct {
		tenantID  string
		label     string
		dimension int
	}
	var conflicts []conflict
	for rows.Next() {
		var c conflict
		if err := rows.Scan(&c.tenantID, &c.label, &c.dimension); err != nil {
			return fmt.Errorf("scanning dimension conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading dimension conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		return nil
	}

	if allowMigration {
		for _, c := range conflicts {
			m.logger.Warn("active index dimension differs from configuration; reindex required",
				"tenant", c.tenantID, "label", c.label,
				"index_dimension", c.dimension, "configured_dimension", configured)
		}
		return nil
	}

	first := conflicts[0]
	return fmt.Errorf("%d active vector index(es) disagree with configured dimension %d; set allow_dimension_migration and run an explicit reindex: %w",
		len(conflicts), configured, &DimensionMismatchError{
			TenantID:  first.tenantID,
			Label:     first.label,
			Existing:  first.dimension,
			Requested: configured,
		})
}

// setStateLocked flips an existing descriptor's state under the advisory
// lock, failing with ErrIndexNotFound when no descriptor exists.
func (m *Manager) setStateLocked(ctx context.Context, tenantID, label string, state State) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, tenantID+"/"+label); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	var createdAt, updatedAt time.Time
	err = tx.QueryRow(ctx, setStateSQL, tenantID, label, state).Scan(&createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", tenantID, label, ErrIndexNotFound)
	}
	if err != nil {
		return fmt.Errorf("setting index state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing state change: %w", err)
	}
	return nil
}

// nextReindexBatch pages through a tenant's chunks by id.
func (m *Manager) nextReindexBatch(ctx context.Context, tenantID string, after uuid.UUID) ([]uuid.UUID, []string, error) {
	rows, err := m.pool.Query(ctx, listChunksForReindexSQL, tenantID, after, reindexBatchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("listing chunks for reindex: %w", err)
	}
	defer rows.Close()

	var (
		ids   []uuid.UUID
		texts []string
	)
	for rows.Next() {
		var (
			id   uuid.UUID
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, nil, fmt.Errorf("scanning chunk for reindex: %w", err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading chunks for reindex: %w", err)
	}
	return ids, texts, nil
}

// applyEmbeddings writes one batch of fresh vectors.
func (m *Manager) applyEmbeddings(ctx context.Context, ids []uuid.UUID, vecs [][]float32, dim int, providerID string) error {
	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(updateChunkEmbeddingSQL, pgvector.NewVector(vecs[i]), dim, providerID, id)
	}

	br := m.pool.SendBatch(ctx, batch)
	defer func() {
		_ = br.Close()
	}()

	for i := range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("updating chunk %s: %w", ids[i], err)
		}
	}
	return nil
}

// getDescriptor loads one descriptor. Returns found=false when absent.
func getDescriptor(ctx context.Context, q querier, tenantID, label string) (Descriptor, bool, error) {
	var desc Descriptor
	err := q.QueryRow(ctx, getDescriptorSQL, tenantID, label).Scan(
		&desc.TenantID, &desc.Label, &desc.Property, &desc.Dimension,
		&desc.Metric, &desc.State, &desc.CreatedAt, &desc.UpdatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Descriptor{}, false, nil
	case err != nil:
		return Descriptor{}, false, fmt.Errorf("querying index descriptor: %w", err)
	default:
		return desc, true, nil
	}
}

func scanDescriptors(rows pgx.Rows) ([]Descriptor, error) {
	defer rows.Close()

	var descs []Descriptor
	for rows.Next() {
		var desc Descriptor
		if err := rows.Scan(
			&desc.TenantID, &desc.Label, &desc.Property, &desc.Dimension,
			&desc.Metric, &desc.State, &desc.CreatedAt, &desc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning index descriptor: %w", err)
		}
		descs = append(descs, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading index descriptors: %w", err)
	}
	return descs, nil
}

func validMetric(metric string) bool {
	switch metric {
	case config.MetricCosine, config.MetricL2, config.MetricDot:
		return true
	}
	return false
}
