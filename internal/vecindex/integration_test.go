//go:build integration

package vecindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/testutil"
)

func TestIndexLifecycle_Integration(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	m, err := NewManager(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	t.Run("create and describe", func(t *testing.T) {
		desc, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 8, config.MetricCosine)
		if err != nil {
			t.Fatalf("EnsureIndex: %v", err)
		}
		if desc.State != StateActive {
			t.Errorf("state = %s, want %s", desc.State, StateActive)
		}
		if desc.Dimension != 8 {
			t.Errorf("dimension = %d, want 8", desc.Dimension)
		}
		if desc.Property != DefaultProperty {
			t.Errorf("property = %q, want %q", desc.Property, DefaultProperty)
		}

		got, err := m.DescribeIndex(ctx, "acme", "knowledge")
		if err != nil {
			t.Fatalf("DescribeIndex: %v", err)
		}
		if got.Dimension != 8 || got.State != StateActive || got.Metric != config.MetricCosine {
			t.Errorf("described %+v does not match created index", got)
		}
	})

	t.Run("re-ensure is idempotent", func(t *testing.T) {
		desc, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 8, config.MetricCosine)
		if err != nil {
			t.Fatalf("second EnsureIndex: %v", err)
		}
		if desc.State != StateActive || desc.Dimension != 8 {
			t.Errorf("idempotent re-ensure changed the descriptor: %+v", desc)
		}
	})

	t.Run("dimension mismatch flips state and persists", func(t *testing.T) {
		_, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 16, config.MetricCosine)
		var mismatch *DimensionMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("got %v, want *DimensionMismatchError", err)
		}
		if mismatch.Existing != 8 || mismatch.Requested != 16 {
			t.Errorf("mismatch = existing %d / requested %d, want 8 / 16", mismatch.Existing, mismatch.Requested)
		}

		desc, err := m.DescribeIndex(ctx, "acme", "knowledge")
		if err != nil {
			t.Fatalf("DescribeIndex: %v", err)
		}
		if desc.State != StateMismatchDetected {
			t.Errorf("state = %s, want %s", desc.State, StateMismatchDetected)
		}
		if desc.Dimension != 8 {
			t.Errorf("dimension = %d, existing data must keep its dimension", desc.Dimension)
		}

		// A repeat attempt reports the same mismatch without disturbing
		// the descriptor further.
		if _, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 16, config.MetricCosine); !errors.As(err, &mismatch) {
			t.Fatalf("repeat mismatch: got %v, want *DimensionMismatchError", err)
		}
		desc, err = m.DescribeIndex(ctx, "acme", "knowledge")
		if err != nil {
			t.Fatalf("DescribeIndex after repeat: %v", err)
		}
		if desc.State != StateMismatchDetected {
			t.Errorf("state after repeat = %s, want %s", desc.State, StateMismatchDetected)
		}
	})

	t.Run("metric disagreement fails without state change", func(t *testing.T) {
		if _, err := m.EnsureIndex(ctx, "globex", "knowledge", "", 8, config.MetricCosine); err != nil {
			t.Fatalf("EnsureIndex: %v", err)
		}

		_, err := m.EnsureIndex(ctx, "globex", "knowledge", "", 8, config.MetricL2)
		if err == nil {
			t.Fatal("expected metric disagreement to fail")
		}
		var mismatch *DimensionMismatchError
		if errors.As(err, &mismatch) {
			t.Errorf("metric disagreement must not be a dimension mismatch: %v", err)
		}

		desc, err := m.DescribeIndex(ctx, "globex", "knowledge")
		if err != nil {
			t.Fatalf("DescribeIndex: %v", err)
		}
		if desc.State != StateActive {
			t.Errorf("state = %s, want %s", desc.State, StateActive)
		}
	})

	t.Run("listing", func(t *testing.T) {
		acme, err := m.ListTenantIndexes(ctx, "acme")
		if err != nil {
			t.Fatalf("ListTenantIndexes: %v", err)
		}
		if len(acme) != 1 {
			t.Fatalf("acme has %d indexes, want 1", len(acme))
		}

		all, err := m.ListIndexes(ctx)
		if err != nil {
			t.Fatalf("ListIndexes: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("total indexes = %d, want 2", len(all))
		}

		missing, err := m.DescribeIndex(ctx, "nobody", "knowledge")
		if !errors.Is(err, ErrIndexNotFound) {
			t.Errorf("DescribeIndex(nobody) = (%+v, %v), want ErrIndexNotFound", missing, err)
		}
	})
}

func TestCheckStartupDimension_Integration(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	m, err := NewManager(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 8, config.MetricCosine); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	if err := m.CheckStartupDimension(ctx, 8, false); err != nil {
		t.Errorf("matching dimension: %v", err)
	}

	err = m.CheckStartupDimension(ctx, 16, false)
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("conflicting dimension: got %v, want *DimensionMismatchError", err)
	}
	if mismatch.Existing != 8 || mismatch.Requested != 16 {
		t.Errorf("conflict reports %d/%d, want 8/16", mismatch.Existing, mismatch.Requested)
	}

	// The explicit migration flag turns refusal into a warning.
	if err := m.CheckStartupDimension(ctx, 16, true); err != nil {
		t.Errorf("allowMigration: %v", err)
	}
}

// seedChunks inserts a source with n chunks at the given dimension,
// bypassing the write-path descriptor checks.
func seedChunks(t *testing.T, tdb *testutil.TestDB, tenantID string, n, dim int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var sourceID uuid.UUID
	err := tdb.Pool.QueryRow(ctx,
		`INSERT INTO sources (tenant_id, title, origin, tags) VALUES ($1, $2, $3, $4) RETURNING id`,
		tenantID, "Seeded Source", "test", []string{},
	).Scan(&sourceID)
	if err != nil {
		t.Fatalf("seeding source: %v", err)
	}

	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		_, err := tdb.Pool.Exec(ctx,
			`INSERT INTO chunks (source_id, tenant_id, content, token_start, token_end, embedding, provider_id, embedding_dim)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sourceID, tenantID, fmt.Sprintf("chunk %d", i), i*10, i*10+9,
			pgvector.NewVector(vec), "stub/seed", dim,
		)
		if err != nil {
			t.Fatalf("seeding chunk %d: %v", i, err)
		}
	}
	return sourceID
}

func TestReindex_Integration(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	m, err := NewManager(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Reindex(ctx, "acme", "knowledge", embedding.NewStub("fresh", 16)); !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("reindex without descriptor: got %v, want ErrIndexNotFound", err)
	}

	if _, err := m.EnsureIndex(ctx, "acme", "knowledge", "", 8, config.MetricCosine); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	seedChunks(t, tdb, "acme", 3, 8)

	provider := embedding.NewStub("fresh", 16)
	total, err := m.Reindex(ctx, "acme", "knowledge", provider)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if total != 3 {
		t.Errorf("reindexed %d chunks, want 3", total)
	}

	desc, err := m.DescribeIndex(ctx, "acme", "knowledge")
	if err != nil {
		t.Fatalf("DescribeIndex: %v", err)
	}
	if desc.Dimension != 16 {
		t.Errorf("dimension after reindex = %d, want 16", desc.Dimension)
	}
	if desc.State != StateActive {
		t.Errorf("state after reindex = %s, want %s", desc.State, StateActive)
	}

	var migrated int
	err = tdb.Pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE tenant_id = $1 AND embedding_dim = 16 AND provider_id = $2`,
		"acme", provider.ProviderID(),
	).Scan(&migrated)
	if err != nil {
		t.Fatalf("counting migrated chunks: %v", err)
	}
	if migrated != 3 {
		t.Errorf("%d chunks carry the new dimension and provider, want 3", migrated)
	}
}
