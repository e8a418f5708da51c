// Package api provides the JSON REST API server for Docent.
//
// # Architecture
//
// The server uses Go 1.22+ method-qualified routing with a layered
// middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// Every data route is tenant-scoped: mutating requests carry the tenant
// id in the JSON body, reads carry it in the ?tenant= query parameter.
// There is no cookie or session identity; callers are trusted to name
// their tenant, and isolation is enforced by the stores underneath.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — pings the database pool
//
// Documents:
//   - POST   /api/v1/documents      — ingest a document (chunk + embed + store)
//   - GET    /api/v1/documents      — list a tenant's sources
//   - GET    /api/v1/documents/{id} — get one source
//   - DELETE /api/v1/documents/{id} — delete a source and its chunks
//
// Query:
//   - POST /api/v1/query — answer a question from the tenant's knowledge
//
// Sessions:
//   - GET    /api/v1/sessions            — list a tenant's sessions
//   - GET    /api/v1/sessions/{id}       — get one session
//   - GET    /api/v1/sessions/{id}/turns — list a session's turns
//   - DELETE /api/v1/sessions/{id}       — delete a session and its turns
//
// Index administration:
//   - POST /api/v1/indexes     — ensure the tenant's index exists
//   - GET  /api/v1/indexes     — list index descriptors
//   - GET  /api/v1/constraints — list declared table constraints
//   - GET  /api/v1/schema      — validate extension and tables
//
// Stats:
//   - GET /api/v1/stats — per-tenant document, chunk, session, turn counts
//
// # Error Handling
//
// Errors use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Domain errors map to status codes: invalid input → 400, missing
// resources → 404, index dimension conflicts → 409, exhausted time
// budgets → 504, provider failures → 502.
//
// # Security
//
// The middleware stack enforces:
//   - Per-IP rate limiting (token bucket, 60 req burst by default)
//   - CORS with explicit origin allowlist
//   - Security headers (CSP, X-Frame-Options, nosniff)
package api
