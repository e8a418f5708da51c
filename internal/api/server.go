package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/vecindex"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Assistant *assistant.Assistant // Required: ingestion and query pipeline
	Knowledge *knowledge.Store     // Required: source management endpoints
	Sessions  *memory.Store        // Required: session endpoints
	Indexes   *vecindex.Manager    // Required: index admin endpoints
	RAG       config.RAGConfig     // Index label and metric for ensure
	Dimension int                  // Active embedding dimension for ensure
	Pool      *pgxpool.Pool        // Optional: nil disables the db ping in /ready

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Assistant == nil:
		return nil, errors.New("assistant is required")
	case cfg.Knowledge == nil:
		return nil, errors.New("knowledge store is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session store is required")
	case cfg.Indexes == nil:
		return nil, errors.New("index manager is required")
	case cfg.Dimension <= 0:
		return nil, errors.New("embedding dimension is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dh := &documentsHandler{assistant: cfg.Assistant, store: cfg.Knowledge, logger: logger}
	qh := &queryHandler{assistant: cfg.Assistant, logger: logger}
	sh := &sessionsHandler{store: cfg.Sessions, logger: logger}
	ih := &indexesHandler{manager: cfg.Indexes, rag: cfg.RAG, dimension: cfg.Dimension, logger: logger}
	st := &statsHandler{knowledge: cfg.Knowledge, sessions: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()

	// Documents
	mux.HandleFunc("POST /api/v1/documents", dh.create)
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("GET /api/v1/documents/{id}", dh.get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.delete)

	// Query
	mux.HandleFunc("POST /api/v1/query", qh.ask)

	// Sessions
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/turns", sh.turns)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	// Index administration
	mux.HandleFunc("POST /api/v1/indexes", ih.ensure)
	mux.HandleFunc("GET /api/v1/indexes", ih.list)
	mux.HandleFunc("GET /api/v1/constraints", ih.constraints)
	mux.HandleFunc("GET /api/v1/schema", ih.schema)

	// Stats
	mux.HandleFunc("GET /api/v1/stats", st.get)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
