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

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/app"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/retrieval"
)

// askOptions holds the parsed ask command arguments.
type askOptions struct {
	tenant   string
	k        int
	tags     []string
	fresh    bool
	session  *uuid.UUID
	question string
}

// parseAskFlags parses `docent ask` arguments. Everything after the
// flags is joined into the question.
func parseAskFlags(args []string) (askOptions, error) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	tenant := fs.String("tenant", "", "tenant id (required)")
	k := fs.Int("k", 0, "retrieval depth (0 = configured default)")
	tags := fs.String("tags", "", "restrict retrieval to sources with one of these comma-separated tags")
	fresh := fs.Bool("new", false, "start a new session instead of continuing the last one")
	session := fs.String("session", "", "continue this session id instead of the last one")

	if err := fs.Parse(args); err != nil {
		return askOptions{}, fmt.Errorf("parsing ask flags: %w", err)
	}

	opts := askOptions{
		tenant:   *tenant,
		k:        *k,
		tags:     splitTags(*tags),
		fresh:    *fresh,
		question: strings.TrimSpace(strings.Join(fs.Args(), " ")),
	}

	if opts.tenant == "" {
		return askOptions{}, fmt.Errorf("-tenant is required")
	}
	if opts.question == "" {
		return askOptions{}, fmt.Errorf("a question is required")
	}
	if *session != "" {
		if opts.fresh {
			return askOptions{}, fmt.Errorf("-session and -new are mutually exclusive")
		}
		id, err := uuid.Parse(*session)
		if err != nil {
			return askOptions{}, fmt.Errorf("invalid session id: %s", *session)
		}
		opts.session = &id
	}

	return opts, nil
}

// runAsk answers a question from the tenant's knowledge base,
// continuing the last session unless -new is given.
func runAsk() error {
	opts, err := parseAskFlags(os.Args[2:])
	if err != nil {
		return err
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

	res, err := a.Assistant.Query(ctx, assistant.QueryRequest{
		TenantID:  opts.tenant,
		Question:  opts.question,
		K:         opts.k,
		SessionID: resolveAskSession(ctx, a.Sessions, opts),
		Tags:      opts.tags,
	})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	saveAskSession(res.SessionID)

	fmt.Println(renderMarkdown(res.Answer))
	if len(res.SourceIDs) > 0 {
		titles := sourceTitles(res.Results)
		fmt.Println()
		fmt.Println("Sources:")
		for i, id := range res.SourceIDs {
			if title := titles[id]; title != "" {
				fmt.Printf("  [%d] %s (%s)\n", i+1, title, id)
			} else {
				fmt.Printf("  [%d] %s\n", i+1, id)
			}
		}
	}
	fmt.Println()
	fmt.Printf("Confidence: %.2f\n", res.Confidence)
	if res.Degraded {
		fmt.Println("Note: the generation backend was unavailable; the answer quotes retrieved passages directly.")
	}

	return nil
}

// resolveAskSession returns the session to continue: an explicit
// -session id as given, otherwise the saved one if it still belongs to
// this tenant. A stale or foreign saved session silently starts fresh.
func resolveAskSession(ctx context.Context, sessions *memory.Store, opts askOptions) *uuid.UUID {
	if opts.fresh {
		return nil
	}
	if opts.session != nil {
		return opts.session
	}

	dir, err := memory.DefaultStateDir()
	if err != nil {
		slog.Warn("resolving state directory", "error", err)
		return nil
	}
	saved, err := memory.LoadCurrentSessionID(dir)
	if err != nil {
		slog.Warn("ignoring unreadable session state", "error", err)
		return nil
	}
	if saved == nil {
		return nil
	}
	if _, err := sessions.GetSession(ctx, opts.tenant, *saved); err != nil {
		return nil
	}
	return saved
}

// saveAskSession records the session for the next invocation to pick up.
func saveAskSession(id uuid.UUID) {
	dir, err := memory.DefaultStateDir()
	if err != nil {
		slog.Warn("resolving state directory", "error", err)
		return
	}
	if err := memory.SaveCurrentSessionID(dir, id); err != nil {
		slog.Warn("saving session state", "error", err)
	}
}

// sourceTitles maps cited source ids to their titles from the ranked hits.
func sourceTitles(results []retrieval.Result) map[uuid.UUID]string {
	titles := make(map[uuid.UUID]string, len(results))
	for _, r := range results {
		if _, ok := titles[r.SourceID]; !ok {
			titles[r.SourceID] = r.SourceTitle
		}
	}
	return titles
}

// renderMarkdown converts Markdown to styled terminal output. Returns
// the original text if rendering fails.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSuffix(rendered, "\n")
}
