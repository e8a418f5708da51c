// Package cmd provides the docent CLI commands.
//
// Commands:
//   - serve: HTTP JSON API server
//   - mcp: Model Context Protocol server for agent runtimes
//   - ingest: add a document to a tenant's knowledge base
//   - ask: ask a question against a tenant's knowledge base
//   - index: vector index administration
//   - sessions: conversation session administration
//
// Signal handling and graceful shutdown are implemented for the server
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docent-ai/docent/internal/log"
)

// Execute is the main entry point for the docent CLI.
func Execute() error {
	// Initialize logger once at entry point. Logs go to stderr so the
	// MCP command can reserve stdout for JSON-RPC frames.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "ingest":
		return runIngest()
	case "ask":
		return runAsk()
	case "index":
		return runIndex()
	case "sessions":
		return runSessions()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Docent - tenant-aware knowledge base with cited answers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docent serve [addr]             Start HTTP API server (default from config)")
	fmt.Println("  docent mcp                      Start MCP server on stdio")
	fmt.Println("  docent ingest [flags] [file]    Ingest a document (stdin when no file)")
	fmt.Println("  docent ask [flags] <question>   Ask a question")
	fmt.Println("  docent index <subcommand>       Manage vector indexes")
	fmt.Println("  docent sessions <subcommand>    Manage conversation sessions")
	fmt.Println("  docent --version                Show version information")
	fmt.Println("  docent --help                   Show this help")
	fmt.Println()
	fmt.Println("Index subcommands:")
	fmt.Println("  ensure -tenant <id>             Create or validate the tenant's index")
	fmt.Println("  list [-tenant <id>]             List index descriptors")
	fmt.Println("  reindex -tenant <id>            Re-embed a tenant at the configured dimension")
	fmt.Println("  validate-schema                 Check extension and tables")
	fmt.Println("  constraints                     List constraints on the core tables")
	fmt.Println()
	fmt.Println("Sessions subcommands:")
	fmt.Println("  list -tenant <id> [-limit N]    List sessions, most recent first")
	fmt.Println("  show -tenant <id> <session-id>  Show a session's turns")
	fmt.Println("  delete -tenant <id> <session-id> Delete a session and its turns")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required when a cloud provider is configured")
	fmt.Println("  DATABASE_URL       Overrides the postgres_* settings")
	fmt.Println("  DEBUG              Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration is read from ~/.docent/config.yaml; every key has")
	fmt.Println("a DOCENT_* environment override.")
}
