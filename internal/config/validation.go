package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// validProviders is the closed set of provider kinds.
var validProviders = []string{ProviderCloud, ProviderLocal, ProviderStub}

// validMetrics is the closed set of similarity metrics.
var validMetrics = []string{MetricCosine, MetricL2, MetricDot}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Embedding provider
	if !slices.Contains(validProviders, c.Embedding.Provider) {
		return fmt.Errorf("%w: embedding.provider must be one of %v, got %q",
			ErrInvalidProvider, validProviders, c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding.model cannot be empty", ErrInvalidModel)
	}
	// pgvector supports up to 16000 dimensions per vector.
	if c.Embedding.Dimension < 1 || c.Embedding.Dimension > 16000 {
		return fmt.Errorf("%w: must be between 1 and 16000, got %d",
			ErrInvalidDimension, c.Embedding.Dimension)
	}

	// Generation provider
	if !slices.Contains(validProviders, c.Generation.Provider) {
		return fmt.Errorf("%w: generation.provider must be one of %v, got %q",
			ErrInvalidProvider, validProviders, c.Generation.Provider)
	}
	if c.Generation.Provider != ProviderStub && c.Generation.Model == "" {
		return fmt.Errorf("%w: generation.model cannot be empty", ErrInvalidModel)
	}
	if c.Generation.Temperature < 0.0 || c.Generation.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f",
			ErrInvalidTemperature, c.Generation.Temperature)
	}
	if c.Generation.MaxTokens < 1 || c.Generation.MaxTokens > 1048576 {
		return fmt.Errorf("%w: must be between 1 and 1,048,576, got %d",
			ErrInvalidMaxTokens, c.Generation.MaxTokens)
	}

	// Cloud providers need the Gemini key; Genkit reads it directly.
	if c.Embedding.Provider == ProviderCloud || c.Generation.Provider == ProviderCloud {
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for cloud providers",
				ErrMissingAPIKey)
		}
	}

	// Local providers need an Ollama endpoint.
	if c.Embedding.Provider == ProviderLocal || c.Generation.Provider == ProviderLocal {
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty when a local provider is selected",
				ErrInvalidOllamaHost)
		}
	}

	// Chunking
	if c.RAG.ChunkSize < 1 || c.RAG.ChunkSize > 8192 {
		return fmt.Errorf("%w: rag.chunk_size must be between 1 and 8192, got %d",
			ErrInvalidChunking, c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap must be in [0, chunk_size), got %d for chunk_size %d",
			ErrInvalidChunking, c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}

	// Retrieval depth
	if c.RAG.MaxTopK < 1 || c.RAG.MaxTopK > 100 {
		return fmt.Errorf("%w: rag.max_top_k must be between 1 and 100, got %d",
			ErrInvalidTopK, c.RAG.MaxTopK)
	}
	if c.RAG.TopK < 1 || c.RAG.TopK > c.RAG.MaxTopK {
		return fmt.Errorf("%w: rag.top_k must be between 1 and max_top_k (%d), got %d",
			ErrInvalidTopK, c.RAG.MaxTopK, c.RAG.TopK)
	}

	// Similarity
	if !slices.Contains(validMetrics, c.RAG.Metric) {
		return fmt.Errorf("%w: rag.metric must be one of %v, got %q",
			ErrInvalidMetric, validMetrics, c.RAG.Metric)
	}
	if c.RAG.MinSimilarity < -1.0 || c.RAG.MinSimilarity > 1.0 {
		return fmt.Errorf("%w: rag.min_similarity must be between -1.0 and 1.0, got %.2f",
			ErrInvalidThreshold, c.RAG.MinSimilarity)
	}
	if c.RAG.IndexLabel == "" {
		return fmt.Errorf("%w: rag.index_label cannot be empty", ErrInvalidMetric)
	}

	// Memory
	if c.Memory.MaxContextTokens < 1 {
		return fmt.Errorf("%w: memory.max_context_tokens must be positive, got %d",
			ErrInvalidMaxTokens, c.Memory.MaxContextTokens)
	}

	// Timeouts
	if c.Timeouts.QueryBudgetMS < 100 {
		return fmt.Errorf("%w: timeouts.query_budget_ms must be at least 100, got %d",
			ErrInvalidTimeout, c.Timeouts.QueryBudgetMS)
	}
	if c.Timeouts.ProviderCallMS < 100 || c.Timeouts.ProviderCallMS > c.Timeouts.QueryBudgetMS {
		return fmt.Errorf("%w: timeouts.provider_call_ms must be between 100 and query_budget_ms (%d), got %d",
			ErrInvalidTimeout, c.Timeouts.QueryBudgetMS, c.Timeouts.ProviderCallMS)
	}

	// PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "docent_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are excluded (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidServerPort, c.Server.Port)
	}

	return nil
}
