package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/docent-ai/docent/internal/config"
)

// Stub returns deterministic unit vectors derived from the input text
// alone, so ingestion, retrieval, and index management can run in tests and
// demos with no model behind them. Equal texts always embed identically;
// the dimension is configurable to match whatever index is active.
type Stub struct {
	model string
	dim   int
}

// NewStub creates a stub provider with the given dimension.
func NewStub(model string, dim int) *Stub {
	return &Stub{model: model, dim: dim}
}

// EmbedText derives a unit vector from an FNV hash of the text.
func (s *Stub) EmbedText(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, s.dim)
	var norm float64
	for i := range vec {
		var v uint64
		state, v = splitmix64(state)
		f := float64(int64(v)) / (1 << 63)
		vec[i] = float32(f)
		norm += f * f
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (s *Stub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured output width.
func (s *Stub) Dimension() int { return s.dim }

// ProviderID returns the stable provider/model identifier.
func (s *Stub) ProviderID() string { return config.ProviderStub + "/" + s.model }

// splitmix64 advances a 64-bit PRNG state. Stable across platforms, which
// keeps stub vectors reproducible everywhere.
func splitmix64(state uint64) (next, value uint64) {
	state += 0x9e3779b97f4a7c15
	z := state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return state, z ^ (z >> 31)
}
