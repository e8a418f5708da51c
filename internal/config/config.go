// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docent/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: provider kind (cloud/local/stub), model, vector dimension
//   - Generation: provider kind, model, sampling, stub fallback
//   - RAG: chunking, retrieval depth, similarity threshold, index label
//   - Memory: conversational context budget
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: HTTP bind address, CORS, rate limiting
//   - Observability: Datadog APM tracing (see observability.go)
//
// Providers are selected once at load time and never re-resolved per
// request. Sensitive values (passwords, API keys) are masked in
// MarshalJSON/String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates an unsupported provider kind.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModel indicates a missing or malformed model name.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates retrieval depth settings are out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidMetric indicates an unsupported similarity metric.
	ErrInvalidMetric = errors.New("invalid similarity metric")

	// ErrInvalidThreshold indicates the minimum similarity is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerPort indicates the HTTP port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")

	// ErrInvalidTimeout indicates a timeout budget is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Provider kinds used by embedding and generation configuration.
// The set is closed: selection happens once at startup, never per request.
const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
	ProviderStub  = "stub"
)

// Similarity metrics supported by the vector index.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
	MetricDot    = "dot"
)

// genkit provider prefix for cloud models.
const googleAIPrefix = "googleai/"

// EmbeddingConfig selects the active embedding provider.
// Historical chunks may carry embeddings from a retired provider; the
// active provider only governs new writes and query embedding.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" json:"provider"`   // "cloud" (default), "local", "stub"
	Model     string `mapstructure:"model" json:"model"`         // e.g. "gemini-embedding-001", "nomic-embed-text"
	Dimension int    `mapstructure:"dimension" json:"dimension"` // vector length the provider must produce
}

// ProviderID returns the identifier recorded on chunks embedded by this
// provider, e.g. "cloud/gemini-embedding-001".
func (e EmbeddingConfig) ProviderID() string {
	return e.Provider + "/" + e.Model
}

// GenerationConfig selects the generation provider and sampling settings.
type GenerationConfig struct {
	Provider     string  `mapstructure:"provider" json:"provider"` // "cloud" (default), "local", "stub"
	Model        string  `mapstructure:"model" json:"model"`
	Temperature  float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens" json:"max_tokens"`
	RAGOnly      bool    `mapstructure:"rag_only" json:"rag_only"`           // force stub generation (retrieval-only deployments)
	StubFallback bool    `mapstructure:"stub_fallback" json:"stub_fallback"` // degrade to stub when the provider fails
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash".
func (g GenerationConfig) FullModelName() string {
	return googleAIPrefix + g.Model
}

// RAGConfig controls chunking and retrieval behavior.
type RAGConfig struct {
	ChunkSize     int     `mapstructure:"chunk_size" json:"chunk_size"`         // tokens per chunk window
	ChunkOverlap  int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`   // tokens shared between consecutive chunks
	TopK          int     `mapstructure:"top_k" json:"top_k"`                   // default retrieval depth
	MaxTopK       int     `mapstructure:"max_top_k" json:"max_top_k"`           // hard clamp on requested k
	MinSimilarity float64 `mapstructure:"min_similarity" json:"min_similarity"` // results below this are dropped
	IndexLabel    string  `mapstructure:"index_label" json:"index_label"`       // descriptor label, one active per tenant
	Metric        string  `mapstructure:"metric" json:"metric"`                 // "cosine" (default), "l2", "dot"
}

// MemoryConfig bounds the conversational context window.
type MemoryConfig struct {
	MaxContextTokens int `mapstructure:"max_context_tokens" json:"max_context_tokens"`
}

// TimeoutsConfig holds the end-to-end and per-call time budgets (ms).
type TimeoutsConfig struct {
	QueryBudgetMS  int `mapstructure:"query_budget_ms" json:"query_budget_ms"`   // whole query pipeline
	ProviderCallMS int `mapstructure:"provider_call_ms" json:"provider_call_ms"` // single embed/generate attempt
}

// QueryBudget returns the end-to-end query budget as a duration.
func (t TimeoutsConfig) QueryBudget() time.Duration {
	return time.Duration(t.QueryBudgetMS) * time.Millisecond
}

// ProviderCall returns the single provider attempt budget as a duration.
func (t TimeoutsConfig) ProviderCall() time.Duration {
	return time.Duration(t.ProviderCallMS) * time.Millisecond
}

// ServerConfig holds the HTTP API settings (serve mode only).
type ServerConfig struct {
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // per-IP token bucket burst (0 = default 60)
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	Embedding  EmbeddingConfig  `mapstructure:"embedding" json:"embedding"`
	Generation GenerationConfig `mapstructure:"generation" json:"generation"`
	RAG        RAGConfig        `mapstructure:"rag" json:"rag"`
	Memory     MemoryConfig     `mapstructure:"memory" json:"memory"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts" json:"timeouts"`
	Server     ServerConfig     `mapstructure:"server" json:"server"`

	// Ollama host, used whenever a "local" provider is selected.
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// AllowDimensionMigration permits startup when an Active index disagrees
	// with the configured embedding dimension. Without it the process
	// refuses to start; the operator runs `docent index reindex` first.
	AllowDimensionMigration bool `mapstructure:"allow_dimension_migration" json:"allow_dimension_migration"`

	// Observability configuration (see observability.go)
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// RAG-only deployments run the stub generator regardless of provider.
	if cfg.Generation.RAGOnly {
		cfg.Generation.Provider = ProviderStub
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Embedding defaults. gemini-embedding-001 supports truncation to 768
	// dimensions via OutputDimensionality.
	v.SetDefault("embedding.provider", ProviderCloud)
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.dimension", 768)

	// Generation defaults
	v.SetDefault("generation.provider", ProviderCloud)
	v.SetDefault("generation.model", "gemini-2.5-flash")
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("generation.rag_only", false)
	v.SetDefault("generation.stub_fallback", true)

	// RAG defaults
	v.SetDefault("rag.chunk_size", 800)
	v.SetDefault("rag.chunk_overlap", 120)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.max_top_k", 20)
	v.SetDefault("rag.min_similarity", 0.25)
	v.SetDefault("rag.index_label", "knowledge")
	v.SetDefault("rag.metric", MetricCosine)

	// Memory defaults
	v.SetDefault("memory.max_context_tokens", 2048)

	// Timeout defaults
	v.SetDefault("timeouts.query_budget_ms", 30000)
	v.SetDefault("timeouts.provider_call_ms", 10000)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.rate_burst", 60)

	// Ollama defaults
	v.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docent")
	v.SetDefault("postgres_password", "docent_dev_password")
	v.SetDefault("postgres_db_name", "docent")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("allow_dimension_migration", false)

	// Datadog defaults
	v.SetDefault("datadog.agent_host", "localhost:4318")
	v.SetDefault("datadog.environment", "dev")
	v.SetDefault("datadog.service_name", "docent")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate()
// checks its presence when a cloud provider is selected.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("embedding.provider", "DOCENT_EMBEDDING_PROVIDER")
	mustBind("embedding.model", "DOCENT_EMBEDDING_MODEL")
	mustBind("embedding.dimension", "DOCENT_EMBEDDING_DIMENSION")

	mustBind("generation.provider", "DOCENT_GENERATION_PROVIDER")
	mustBind("generation.model", "DOCENT_GENERATION_MODEL")
	mustBind("generation.rag_only", "DOCENT_RAG_ONLY")

	mustBind("ollama_host", "DOCENT_OLLAMA_HOST")

	mustBind("server.cors_origins", "DOCENT_CORS_ORIGINS")
	mustBind("server.trust_proxy", "DOCENT_TRUST_PROXY")

	mustBind("allow_dimension_migration", "DOCENT_ALLOW_DIMENSION_MIGRATION")

	mustBind("datadog.api_key", "DD_API_KEY")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked; longer secrets keep the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Masked fields: PostgresPassword, Datadog.APIKey (via DatadogConfig.MarshalJSON).
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
