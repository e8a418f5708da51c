package vecindex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/log"
)

func TestStateValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  bool
	}{
		{state: StateCreating, want: true},
		{state: StateActive, want: true},
		{state: StateMismatchDetected, want: true},
		{state: StateReindexing, want: true},
		{state: State("deleted"), want: false},
		{state: State(""), want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()

			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("State(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestDimensionMismatchError_NamesBothDimensions(t *testing.T) {
	t.Parallel()

	err := &DimensionMismatchError{
		TenantID:  "acme",
		Label:     "knowledge",
		Existing:  384,
		Requested: 1536,
	}
	msg := err.Error()
	if !strings.Contains(msg, "384") {
		t.Errorf("error %q does not name the existing dimension 384", msg)
	}
	if !strings.Contains(msg, "1536") {
		t.Errorf("error %q does not name the requested dimension 1536", msg)
	}
	if !strings.Contains(msg, "acme/knowledge") {
		t.Errorf("error %q does not name the index", msg)
	}
}

func TestDimensionMismatchError_As(t *testing.T) {
	t.Parallel()

	var wrapped error = errors.Join(errors.New("outer"),
		&DimensionMismatchError{TenantID: "acme", Label: "knowledge", Existing: 768, Requested: 384})

	var mismatch *DimensionMismatchError
	if !errors.As(wrapped, &mismatch) {
		t.Fatal("errors.As failed to find DimensionMismatchError")
	}
	if mismatch.Existing != 768 || mismatch.Requested != 384 {
		t.Errorf("unexpected dimensions: existing=%d requested=%d", mismatch.Existing, mismatch.Requested)
	}
}

func TestNewManager_RequiresPool(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(nil, log.NewNop()); err == nil {
		t.Fatal("NewManager(nil) succeeded, want error")
	}
}

func TestEnsureIndex_InputValidation(t *testing.T) {
	t.Parallel()

	// Validation runs before any database access, so a pool-less manager
	// is enough to exercise it.
	m := &Manager{logger: log.NewNop()}

	tests := []struct {
		name      string
		tenantID  string
		label     string
		dimension int
		metric    string
		wantErr   error
	}{
		{name: "missing tenant", label: "knowledge", dimension: 768, metric: "cosine", wantErr: ErrMissingTenant},
		{name: "missing label", tenantID: "acme", dimension: 768, metric: "cosine", wantErr: ErrMissingLabel},
		{name: "zero dimension", tenantID: "acme", label: "knowledge", metric: "cosine"},
		{name: "negative dimension", tenantID: "acme", label: "knowledge", dimension: -1, metric: "cosine"},
		{name: "unknown metric", tenantID: "acme", label: "knowledge", dimension: 768, metric: "manhattan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := m.EnsureIndex(context.Background(), tt.tenantID, tt.label, "", tt.dimension, tt.metric)
			if err == nil {
				t.Fatal("EnsureIndex() succeeded, want validation error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("EnsureIndex() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidMetric(t *testing.T) {
	t.Parallel()

	for _, metric := range []string{"cosine", "l2", "dot"} {
		if !validMetric(metric) {
			t.Errorf("validMetric(%q) = false, want true", metric)
		}
	}
	for _, metric := range []string{"", "euclidean", "COSINE"} {
		if validMetric(metric) {
			t.Errorf("validMetric(%q) = true, want false", metric)
		}
	}
}

func TestSchemaReportOK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		report SchemaReport
		want   bool
	}{
		{name: "complete", report: SchemaReport{VectorExtension: true, Tables: requiredTables}, want: true},
		{name: "missing extension", report: SchemaReport{VectorExtension: false}, want: false},
		{name: "missing table", report: SchemaReport{VectorExtension: true, MissingTables: []string{"chunks"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.report.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}
