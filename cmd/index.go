package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/docent-ai/docent/internal/app"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/vecindex"
)

// runIndex dispatches the index subcommands.
func runIndex() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("index requires a subcommand: ensure, list, reindex, validate-schema or constraints")
	}

	switch os.Args[2] {
	case "ensure":
		return runIndexEnsure(os.Args[3:])
	case "list":
		return runIndexList(os.Args[3:])
	case "reindex":
		return runIndexReindex(os.Args[3:])
	case "validate-schema":
		return runIndexValidateSchema()
	case "constraints":
		return runIndexConstraints()
	default:
		return fmt.Errorf("unknown index subcommand: %s", os.Args[2])
	}
}

// runIndexEnsure registers (or verifies) the tenant's vector index using
// the active embedding provider's dimension, so the descriptor always
// matches what ingestion will write.
func runIndexEnsure(args []string) error {
	fs := flag.NewFlagSet("index ensure", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tenant := fs.String("tenant", "", "tenant id (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing index ensure flags: %w", err)
	}
	if *tenant == "" {
		return fmt.Errorf("-tenant is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	desc, err := a.Indexes.EnsureIndex(ctx, *tenant, cfg.RAG.IndexLabel, vecindex.DefaultProperty,
		a.Embedder.Dimension(), cfg.RAG.Metric)
	if err != nil {
		return fmt.Errorf("ensuring index: %w", err)
	}

	fmt.Printf("Index %s/%s ready: %d dimensions, metric %s, state %s\n",
		desc.TenantID, desc.Label, desc.Dimension, desc.Metric, desc.State)
	return nil
}

// runIndexList prints the registered vector indexes, optionally filtered
// to one tenant. Reads the registry directly; no providers are built.
func runIndexList(args []string) error {
	fs := flag.NewFlagSet("index list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tenant := fs.String("tenant", "", "only list this tenant's indexes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing index list flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := vecindex.NewManager(pool, slog.Default())
	if err != nil {
		return fmt.Errorf("creating index manager: %w", err)
	}

	var descs []vecindex.Descriptor
	if *tenant != "" {
		descs, err = manager.ListTenantIndexes(ctx, *tenant)
	} else {
		descs, err = manager.ListIndexes(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing indexes: %w", err)
	}

	if len(descs) == 0 {
		fmt.Println("No vector indexes registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TENANT\tLABEL\tDIM\tMETRIC\tSTATE\tUPDATED")
	for _, d := range descs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			d.TenantID, d.Label, d.Dimension, d.Metric, d.State, formatTime(d.UpdatedAt))
	}
	return w.Flush()
}

// runIndexReindex re-embeds every chunk of the tenant's index with the
// active provider and flips the descriptor back to ready.
func runIndexReindex(args []string) error {
	fs := flag.NewFlagSet("index reindex", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tenant := fs.String("tenant", "", "tenant id (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing index reindex flags: %w", err)
	}
	if *tenant == "" {
		return fmt.Errorf("-tenant is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	fmt.Printf("Reindexing %s/%s with %s (%d dimensions)...\n",
		*tenant, cfg.RAG.IndexLabel, a.Embedder.ProviderID(), a.Embedder.Dimension())

	count, err := a.Indexes.Reindex(ctx, *tenant, cfg.RAG.IndexLabel, a.Embedder)
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}

	fmt.Printf("Reindexed %d chunks.\n", count)
	return nil
}

// runIndexValidateSchema checks the database schema and reports what is
// missing. Runs without migrations so it stays useful when the schema
// itself is the problem.
func runIndexValidateSchema() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := vecindex.NewManager(pool, slog.Default())
	if err != nil {
		return fmt.Errorf("creating index manager: %w", err)
	}

	report, err := manager.ValidateSchema(ctx)
	if err != nil {
		return fmt.Errorf("validating schema: %w", err)
	}

	if report.VectorExtension {
		fmt.Println("vector extension: installed")
	} else {
		fmt.Println("vector extension: MISSING")
	}
	fmt.Printf("tables present:   %s\n", strings.Join(report.Tables, ", "))
	if len(report.MissingTables) > 0 {
		fmt.Printf("tables missing:   %s\n", strings.Join(report.MissingTables, ", "))
	}

	if !report.OK() {
		return fmt.Errorf("schema validation failed")
	}
	fmt.Println("Schema OK.")
	return nil
}

// runIndexConstraints prints the constraints declared on the core tables.
func runIndexConstraints() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := vecindex.NewManager(pool, slog.Default())
	if err != nil {
		return fmt.Errorf("creating index manager: %w", err)
	}

	constraints, err := manager.ListConstraints(ctx)
	if err != nil {
		return fmt.Errorf("listing constraints: %w", err)
	}

	if len(constraints) == 0 {
		fmt.Println("No constraints found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tNAME\tDEFINITION")
	for _, c := range constraints {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Table, c.Name, c.Definition)
	}
	return w.Flush()
}
