// Package retrieval ranks stored chunks against a query embedding and
// scores every hit with a confidence in [0, 1].
//
// The tenant filter is mandatory on every call. Ranking happens in the
// store (distance ascending, source recency breaking ties); this package
// converts raw distances into per-metric similarities, drops hits below
// the configured similarity floor, and clamps the requested depth to the
// configured maximum. Zero surviving hits is a normal empty result.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/vecindex"
)

var (
	// ErrMissingTenant indicates the request carried no tenant id.
	ErrMissingTenant = errors.New("tenant id is required")

	// ErrMissingVector indicates the request carried no query embedding.
	ErrMissingVector = errors.New("query vector is required")
)

// Searcher is the chunk search surface the engine needs.
type Searcher interface {
	Search(ctx context.Context, params knowledge.SearchParams) ([]knowledge.SearchHit, error)
}

// Describer resolves a tenant's index descriptor.
type Describer interface {
	DescribeIndex(ctx context.Context, tenantID, label string) (vecindex.Descriptor, error)
}

// Result is one retrieved chunk with its scores. Similarity is the raw
// per-metric score in [-1, 1]; Confidence is its affine projection into
// [0, 1].
type Result struct {
	knowledge.SearchHit
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
}

// Params carries one retrieval request. K at or below zero falls back to
// the configured default depth; values above the configured maximum are
// clamped. Tags, when set, restrict hits to sources sharing a tag.
type Params struct {
	TenantID string
	Vector   []float32
	K        int
	Tags     []string
}

// Engine runs tenant-scoped similarity retrieval.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	store   Searcher
	indexes Describer
	cfg     config.RAGConfig
	logger  *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Searcher, indexes Describer, cfg config.RAGConfig, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if indexes == nil {
		return nil, fmt.Errorf("index describer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, indexes: indexes, cfg: cfg, logger: logger}, nil
}

// Retrieve returns the tenant's nearest chunks for the query vector,
// ranked best first. Hits whose similarity falls below the configured
// floor are dropped; an empty list is a valid answer, not an error. A
// tenant that has no index yet gets an empty list. A query vector whose
// width disagrees with the tenant's index yields a
// *vecindex.DimensionMismatchError.
func (e *Engine) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	if params.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if len(params.Vector) == 0 {
		return nil, ErrMissingVector
	}
	k := e.clampK(params.K)

	desc, err := e.indexes.DescribeIndex(ctx, params.TenantID, e.cfg.IndexLabel)
	switch {
	case errors.Is(err, vecindex.ErrIndexNotFound):
		e.logger.Debug("no index for tenant, returning empty result", "tenant", params.TenantID)
		return []Result{}, nil
	case err != nil:
		return nil, fmt.Errorf("describing index: %w", err)
	}

	if len(params.Vector) != desc.Dimension {
		return nil, &vecindex.DimensionMismatchError{
			TenantID:  desc.TenantID,
			Label:     desc.Label,
			Existing:  desc.Dimension,
			Requested: len(params.Vector),
		}
	}

	hits, err := e.store.Search(ctx, knowledge.SearchParams{
		TenantID:  params.TenantID,
		Vector:    params.Vector,
		Dimension: desc.Dimension,
		Metric:    desc.Metric,
		K:         k,
		Tags:      params.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		sim, err := Similarity(desc.Metric, hit.Distance)
		if err != nil {
			return nil, err
		}
		if sim < e.cfg.MinSimilarity {
			continue
		}
		results = append(results, Result{
			SearchHit:  hit,
			Similarity: sim,
			Confidence: Confidence(sim),
		})
	}

	e.logger.Debug("retrieved chunks",
		"tenant", params.TenantID, "k", k, "hits", len(hits), "kept", len(results))
	return results, nil
}

// clampK resolves the effective retrieval depth.
func (e *Engine) clampK(k int) int {
	if k <= 0 {
		k = e.cfg.TopK
	}
	if e.cfg.MaxTopK > 0 && k > e.cfg.MaxTopK {
		k = e.cfg.MaxTopK
	}
	if k <= 0 {
		k = 1
	}
	return k
}

// Similarity converts a pgvector distance into a score in [-1, 1] where
// higher means closer. Cosine distance inverts directly. Inner-product
// distance is the negated dot product. L2 distance maps through
// 1 - d²/2, which for unit-length embeddings equals their cosine
// similarity.
func Similarity(metric string, distance float64) (float64, error) {
	switch metric {
	case config.MetricCosine:
		return 1 - distance, nil
	case config.MetricDot:
		return -distance, nil
	case config.MetricL2:
		return 1 - distance*distance/2, nil
	default:
		return 0, fmt.Errorf("unknown similarity metric %q", metric)
	}
}

// Confidence projects a similarity score into [0, 1] with the fixed
// affine transform (sim+1)/2, clamped. It is monotonically
// non-decreasing in the similarity for every metric.
func Confidence(sim float64) float64 {
	conf := (sim + 1) / 2
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
