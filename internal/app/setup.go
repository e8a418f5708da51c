package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/docent-ai/docent/db"
	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/observability"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/retrieval"
	"github.com/docent-ai/docent/internal/vecindex"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup - call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first: Genkit's TracerProvider must carry the span
	// processor before any instrumented component initializes.
	a.otelShutdown = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	if needsGenkit(cfg) {
		g, err := provideGenkit(ctx)
		if err != nil {
			return nil, err
		}
		a.Genkit = g
	}
	if needsOllama(cfg) {
		a.Ollama = ollama.NewClient(ollama.Config{BaseURL: cfg.OllamaHost})
	}

	embedder, err := embedding.NewFromConfig(cfg.Embedding, embedding.Deps{
		Genkit: a.Genkit,
		Ollama: a.Ollama,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	if err := embedding.VerifyDimension(ctx, embedder); err != nil {
		return nil, fmt.Errorf("verifying embedding dimension: %w", err)
	}
	a.Embedder = embedder

	a.Chunker, err = chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	if a.Knowledge, err = knowledge.NewStore(pool, logger); err != nil {
		return nil, err
	}
	if a.Sessions, err = memory.NewStore(pool, logger); err != nil {
		return nil, err
	}
	if a.Indexes, err = vecindex.NewManager(pool, logger); err != nil {
		return nil, err
	}

	// The stored vectors must match what the provider will produce.
	// Refuses to start on a mismatch unless migration is allowed.
	if err := a.Indexes.CheckStartupDimension(ctx, embedder.Dimension(), cfg.AllowDimensionMigration); err != nil {
		return nil, err
	}

	if a.Retriever, err = retrieval.NewEngine(a.Knowledge, a.Indexes, cfg.RAG, logger); err != nil {
		return nil, err
	}

	generator, err := answer.NewGeneratorFromConfig(cfg.Generation, answer.Deps{
		Genkit: a.Genkit,
		Ollama: a.Ollama,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	a.Answers = answer.New(answer.Config{
		Generator:    generator,
		StubFallback: cfg.Generation.StubFallback,
		CallTimeout:  cfg.Timeouts.ProviderCall(),
		Logger:       logger,
	})

	if a.Assistant, err = assistant.New(assistant.Deps{
		Chunker:   a.Chunker,
		Embedder:  a.Embedder,
		Indexes:   a.Indexes,
		Store:     a.Knowledge,
		Retriever: a.Retriever,
		Sessions:  a.Sessions,
		Answers:   a.Answers,
		Logger:    logger,
	}, cfg); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithCancel(ctx)
	a.ctx = appCtx
	a.cancel = cancel

	logger.Info("application ready",
		"embedding", cfg.Embedding.ProviderID(),
		"generation", cfg.Generation.Provider,
		"dimension", embedder.Dimension(),
	)
	return a, nil
}

// needsGenkit reports whether any configured provider runs through
// Genkit's Google AI plugin.
func needsGenkit(cfg *config.Config) bool {
	return cfg.Embedding.Provider == config.ProviderCloud ||
		cfg.Generation.Provider == config.ProviderCloud
}

// needsOllama reports whether any configured provider runs against a
// local Ollama server.
func needsOllama(cfg *config.Config) bool {
	return cfg.Embedding.Provider == config.ProviderLocal ||
		cfg.Generation.Provider == config.ProviderLocal
}

// provideTracing sets up Datadog tracing before Genkit initialization.
//
// Traces are exported to a local Datadog Agent via OTLP HTTP. Failure
// to reach the agent disables tracing, it never blocks startup.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.SetupDatadog(ctx, observability.Config{
		AgentHost:   cfg.Datadog.AgentHost,
		Environment: cfg.Datadog.Environment,
		ServiceName: cfg.Datadog.ServiceName,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without", "error", err)
		return func() {}
	}

	// Shutdown runs during teardown when the parent context is already
	// canceled, so it gets an independent deadline.
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection
// pool. The pool is configured with sensible defaults for a long-lived
// server process.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// plugin reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai plugin")
	}
	return g, nil
}
