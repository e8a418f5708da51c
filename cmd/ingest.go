package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/docent-ai/docent/internal/app"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/config"
)

// ingestOptions holds the parsed ingest command arguments.
type ingestOptions struct {
	tenant string
	title  string
	tags   []string
	path   string // empty means stdin
}

// parseIngestFlags parses `docent ingest` arguments. The single optional
// positional argument is the input file; "-" or no argument reads stdin.
func parseIngestFlags(args []string) (ingestOptions, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	tenant := fs.String("tenant", "", "tenant id (required)")
	title := fs.String("title", "", "document title (defaults to the file name)")
	tags := fs.String("tags", "", "comma-separated tags")

	if err := fs.Parse(args); err != nil {
		return ingestOptions{}, fmt.Errorf("parsing ingest flags: %w", err)
	}

	opts := ingestOptions{
		tenant: *tenant,
		title:  *title,
		tags:   splitTags(*tags),
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		if rest[0] != "-" {
			opts.path = rest[0]
		}
	default:
		return ingestOptions{}, fmt.Errorf("at most one input file expected, got %d", len(rest))
	}

	if opts.tenant == "" {
		return ingestOptions{}, fmt.Errorf("-tenant is required")
	}
	if opts.title == "" {
		if opts.path == "" {
			return ingestOptions{}, fmt.Errorf("-title is required when reading stdin")
		}
		base := filepath.Base(opts.path)
		opts.title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return opts, nil
}

// splitTags splits a comma-separated tag list, dropping empty entries.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// runIngest reads a document and adds it to the tenant's knowledge base.
func runIngest() error {
	opts, err := parseIngestFlags(os.Args[2:])
	if err != nil {
		return err
	}

	var data []byte
	if opts.path == "" {
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		if data, err = os.ReadFile(opts.path); err != nil {
			return fmt.Errorf("reading %s: %w", opts.path, err)
		}
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

	res, err := a.Assistant.Ingest(ctx, assistant.IngestRequest{
		TenantID: opts.tenant,
		Title:    opts.title,
		Text:     string(data),
		Tags:     opts.tags,
		Origin:   "cli",
	})
	if err != nil {
		return fmt.Errorf("ingesting document: %w", err)
	}

	fmt.Printf("Ingested %q: source %s (%d chunks)\n", opts.title, res.SourceID, res.ChunkCount)
	return nil
}
