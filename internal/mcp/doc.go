// Package mcp implements a Model Context Protocol (MCP) server.
//
// The MCP server exposes docent's knowledge base to MCP clients (agent
// runtimes, IDEs, LLM CLIs) over a standardized protocol, so external
// tools can ask questions, ingest documents, and inspect vector indexes
// without going through the HTTP API.
//
// # Tools
//
//   - ask_knowledge: answer a question from a tenant's knowledge base,
//     with citations and a confidence score. Passing a sessionId threads
//     a conversation across calls.
//   - ingest_document: chunk, embed, and store a document for a tenant.
//   - list_vector_indexes: list vector index descriptors, optionally
//     filtered to one tenant.
//
// Input schemas are inferred from Go structs with jsonschema-go, and
// handlers follow the net/http.Handler pattern: each tool is a method on
// Server, registered with mcp.AddTool, building its response inline.
//
// # Error Handling
//
// The server distinguishes two kinds of failure:
//
//   - Caller errors (bad input, unknown tenant or session, dimension
//     mismatch, exhausted budget, unavailable provider) come back as a
//     tool result with IsError=true and a "[code] message" text body, so
//     agents can read the failure and adjust.
//   - Everything else is logged server-side in full and surfaced to the
//     client as an opaque internal error. Detail (SQL, hosts, stack
//     traces) never crosses the protocol boundary.
//
// # Transport
//
// Run blocks on the given transport; `docent mcp` wires stdio, which is
// the standard launch mode for MCP servers.
package mcp
