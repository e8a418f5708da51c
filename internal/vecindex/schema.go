package vecindex

import (
	"context"
	"fmt"
	"sort"
)

// requiredTables are the relations the core cannot run without.
var requiredTables = []string{"sources", "chunks", "conversations", "turns", "vector_indexes"}

const (
	listConstraintsSQL = `SELECT conrelid::regclass::text, conname, pg_get_constraintdef(oid)
		FROM pg_constraint
		WHERE connamespace = 'public'::regnamespace
		  AND conrelid::regclass::text = ANY($1)
		ORDER BY 1, 2`

	vectorExtensionSQL = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`

	presentTablesSQL = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)`
)

// Constraint is one declared table constraint, for operator introspection.
type Constraint struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// ListConstraints returns the constraints declared on the core tables,
// ordered by table then name. Read-only.
func (m *Manager) ListConstraints(ctx context.Context) ([]Constraint, error) {
	rows, err := m.pool.Query(ctx, listConstraintsSQL, requiredTables)
	if err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}
	defer rows.Close()

	var constraints []Constraint
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.Table, &c.Name, &c.Definition); err != nil {
			return nil, fmt.Errorf("scanning constraint: %w", err)
		}
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading constraints: %w", err)
	}
	return constraints, nil
}

// SchemaReport summarizes a schema validation pass.
type SchemaReport struct {
	VectorExtension bool     `json:"vector_extension"`
	Tables          []string `json:"tables"`
	MissingTables   []string `json:"missing_tables,omitempty"`
}

// OK reports whether the schema is complete.
func (r SchemaReport) OK() bool {
	return r.VectorExtension && len(r.MissingTables) == 0
}

// ValidateSchema checks that the pgvector extension and every required
// table are in place. Read-only and idempotent; safe to run repeatedly
// from operator tooling.
func (m *Manager) ValidateSchema(ctx context.Context) (SchemaReport, error) {
	var report SchemaReport
	if err := m.pool.QueryRow(ctx, vectorExtensionSQL).Scan(&report.VectorExtension); err != nil {
		return SchemaReport{}, fmt.Errorf("checking vector extension: %w", err)
	}

	rows, err := m.pool.Query(ctx, presentTablesSQL, requiredTables)
	if err != nil {
		return SchemaReport{}, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool, len(requiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return SchemaReport{}, fmt.Errorf("scanning table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return SchemaReport{}, fmt.Errorf("reading tables: %w", err)
	}

	for _, tbl := range requiredTables {
		if present[tbl] {
			report.Tables = append(report.Tables, tbl)
		} else {
			report.MissingTables = append(report.MissingTables, tbl)
		}
	}
	sort.Strings(report.Tables)
	return report, nil
}
