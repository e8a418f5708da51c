package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/memory"
)

// runSessions dispatches the sessions subcommands.
func runSessions() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("sessions requires a subcommand: list, show or delete")
	}

	switch os.Args[2] {
	case "list":
		return runSessionsList(os.Args[3:])
	case "show":
		return runSessionsShow(os.Args[3:])
	case "delete":
		return runSessionsDelete(os.Args[3:])
	default:
		return fmt.Errorf("unknown sessions subcommand: %s", os.Args[2])
	}
}

// openSessions parses the common -tenant flag plus positional args and
// returns a connected store. The caller owns the returned cleanup.
func openSessions(ctx context.Context, name string, args []string, extra func(*flag.FlagSet)) (*memory.Store, string, []string, func(), error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tenant := fs.String("tenant", "", "tenant id (required)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, "", nil, nil, fmt.Errorf("parsing %s flags: %w", name, err)
	}
	if *tenant == "" {
		return nil, "", nil, nil, fmt.Errorf("-tenant is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("loading config: %w", err)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, "", nil, nil, err
	}

	store, err := memory.NewStore(pool, slog.Default())
	if err != nil {
		pool.Close()
		return nil, "", nil, nil, fmt.Errorf("creating session store: %w", err)
	}
	return store, *tenant, fs.Args(), pool.Close, nil
}

func runSessionsList(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var limit int
	store, tenant, _, cleanup, err := openSessions(ctx, "sessions list", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "limit", 50, "maximum sessions to list")
	})
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, err := store.ListSessions(ctx, tenant, limit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tCREATED\tUPDATED")
	for _, sess := range sessions {
		user := sess.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			sess.ID, user, formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt))
	}
	return w.Flush()
}

func runSessionsShow(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, tenant, rest, cleanup, err := openSessions(ctx, "sessions show", args, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(rest) != 1 {
		return fmt.Errorf("sessions show expects exactly one session id")
	}
	id, err := uuid.Parse(rest[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %s", rest[0])
	}

	sess, err := store.GetSession(ctx, tenant, id)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	turns, err := store.ListTurns(ctx, tenant, id, 0)
	if err != nil {
		return fmt.Errorf("listing turns: %w", err)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Tenant:  %s\n", sess.TenantID)
	if sess.UserID != "" {
		fmt.Printf("User:    %s\n", sess.UserID)
	}
	fmt.Printf("Created: %s\n", formatTime(sess.CreatedAt))
	fmt.Printf("Updated: %s\n", formatTime(sess.UpdatedAt))
	fmt.Printf("Turns:   %d\n", len(turns))
	fmt.Println()

	for _, turn := range turns {
		fmt.Printf("You> %s\n", turn.Question)
		fmt.Printf("Docent> %s\n", turn.Answer)
		note := fmt.Sprintf("confidence %.2f", turn.Confidence)
		if n := len(turn.CitedSourceIDs); n > 0 {
			note += fmt.Sprintf(", %d sources", n)
		}
		if turn.Degraded {
			note += ", degraded"
		}
		fmt.Printf("    (%s)\n\n", note)
	}
	return nil
}

func runSessionsDelete(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, tenant, rest, cleanup, err := openSessions(ctx, "sessions delete", args, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(rest) != 1 {
		return fmt.Errorf("sessions delete expects exactly one session id")
	}
	id, err := uuid.Parse(rest[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %s", rest[0])
	}

	if err := store.DeleteSession(ctx, tenant, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	// Drop the resume marker if it pointed at the deleted session, so the
	// next ask starts fresh instead of failing validation.
	if dir, err := memory.DefaultStateDir(); err == nil {
		if saved, err := memory.LoadCurrentSessionID(dir); err == nil && saved != nil && *saved == id {
			if err := memory.ClearCurrentSessionID(dir); err != nil {
				slog.Warn("could not clear session marker", "error", err)
			}
		}
	}

	fmt.Printf("Deleted session %s.\n", id)
	return nil
}

// formatTime formats a timestamp relative to now for recent activity,
// falling back to an absolute date past a week.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
