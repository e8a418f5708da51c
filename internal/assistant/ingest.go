package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/vecindex"
)

// IngestRequest is one document to ingest. Origin names the surface the
// document arrived through ("api", "mcp", "cli").
type IngestRequest struct {
	TenantID string
	Title    string
	Text     string
	Tags     []string
	Origin   string
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	SourceID   uuid.UUID `json:"source_id"`
	ChunkCount int       `json:"chunk_count"`
}

// Ingest chunks the document, embeds every chunk, and stores the source
// with its chunks under the tenant's index. The index is created on
// first use at the active provider's dimension; a dimension that
// disagrees with an existing index fails the whole ingestion with a
// *vecindex.DimensionMismatchError before anything is written.
func (a *Assistant) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if err := validateTenant(req.TenantID); err != nil {
		return IngestResult{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return IngestResult{}, fmt.Errorf("%w: title is required", ErrInput)
	}

	pieces, err := a.chunker.Split(req.Text)
	if errors.Is(err, chunker.ErrEmptyInput) {
		return IngestResult{}, fmt.Errorf("%w: document text is empty", ErrInput)
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("chunking document: %w", err)
	}

	_, err = a.indexes.EnsureIndex(ctx,
		req.TenantID, a.cfg.RAG.IndexLabel, vecindex.DefaultProperty,
		a.embedder.Dimension(), a.cfg.RAG.Metric)
	if err != nil {
		return IngestResult{}, err
	}

	vectors, err := a.embedPieces(ctx, pieces)
	if err != nil {
		return IngestResult{}, err
	}

	src, err := a.store.InsertSource(ctx, knowledge.Source{
		TenantID: req.TenantID,
		Title:    strings.TrimSpace(req.Title),
		Origin:   req.Origin,
		Tags:     req.Tags,
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("storing source: %w", err)
	}

	chunks := make([]knowledge.ChunkInput, len(pieces))
	for i, piece := range pieces {
		chunks[i] = knowledge.ChunkInput{
			Text:       piece.Text,
			TokenStart: piece.TokenStart,
			TokenEnd:   piece.TokenEnd,
			Embedding:  vectors[i],
		}
	}
	err = a.store.InsertChunks(ctx, knowledge.InsertChunksParams{
		TenantID:   req.TenantID,
		SourceID:   src.ID,
		IndexLabel: a.cfg.RAG.IndexLabel,
		ProviderID: a.embedder.ProviderID(),
		Dimension:  a.embedder.Dimension(),
		Chunks:     chunks,
	})
	if err != nil {
		// The source row is useless without its chunks.
		if delErr := a.store.DeleteSource(ctx, req.TenantID, src.ID); delErr != nil {
			a.logger.Warn("removing source after failed chunk insert",
				"source_id", src.ID, "error", delErr)
		}
		return IngestResult{}, fmt.Errorf("storing chunks: %w", err)
	}

	a.logger.Info("document ingested",
		"tenant", req.TenantID, "source_id", src.ID, "title", src.Title, "chunks", len(pieces))
	return IngestResult{SourceID: src.ID, ChunkCount: len(pieces)}, nil
}

// embedPieces embeds chunks concurrently across a bounded pool. The
// error names the chunk and token offsets that failed.
func (a *Assistant) embedPieces(ctx context.Context, pieces []chunker.Piece) ([][]float32, error) {
	vectors := make([][]float32, len(pieces))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ingestWorkers)
	for i, piece := range pieces {
		eg.Go(func() error {
			vec, err := a.embedder.EmbedText(egCtx, piece.Text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d (tokens %d-%d): %w",
					i, piece.TokenStart, piece.TokenEnd, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
