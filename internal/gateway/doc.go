// ABOUTME: Package documentation for the gateway orchestrator
// ABOUTME: Describes the HTTP surface and the two authentication domains

// Package gateway orchestrates the echo-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the echo-gateway server.
// It owns the persistent store, the note queue manager, the JWT verifier, and
// the HTTP server, and wires them together behind a single net/http mux.
//
// # HTTP API
//
// The API splits into two authentication domains:
//
// User endpoints authenticate with a JWT bearer token obtained from
// POST /api/login:
//
//	POST   /api/register      create a user account
//	POST   /api/login         exchange credentials for a JWT
//	GET    /api/me            current user
//	GET    /api/vaults        list the caller's vaults
//	POST   /api/vaults        create a vault (returns its queue token)
//	GET    /api/vaults/{id}   fetch a vault
//	PUT    /api/vaults/{id}   rename a vault
//	DELETE /api/vaults/{id}   delete a vault and its notes
//
// Queue endpoints authenticate with an opaque vault token (issued at vault
// creation); every request is scoped to that vault:
//
//	POST /api/notes                 enqueue a note (state PENDING)
//	GET  /api/notes                 list notes (state filter, limit, offset)
//	POST /api/notes/{id}/claim      claim a PENDING note for a worker
//	GET  /api/notes/{id}/download   fetch full note content
//	POST /api/notes/{id}/confirm    mark a CLAIMED note DELIVERED
//
// Claim conflicts (note already claimed or delivered) return 409; missing
// notes return 404. Downloads of notes belonging to another vault also
// return 404 so note IDs cannot be probed across tenants.
//
// All responses are JSON; errors use the envelope {"error": "message"}.
// Login failures are throttled per username; an exhausted budget returns
// 429 until the window elapses.
//
// # Lifecycle
//
// New constructs the gateway and opens the store. Run starts the HTTP
// server and blocks until the context is canceled, then shuts down
// gracefully with a bounded timeout and closes the store.
package gateway
