// Package gateway is the outward-facing HTTP edge of parley-gateway.
//
// # Overview
//
// The Gateway terminates HTTP and websocket-upgrade requests, extracts the
// conversation key from the path, and forwards every request to the
// session router. It owns the cross-cutting concerns: CORS, 404s, health
// endpoints, JSON error bodies, and graceful shutdown. It holds no
// conversation state of its own.
//
// # HTTP API
//
// Routes registered in gateway.go, handlers in api.go:
//
//   - POST   /api/conversations/{key}/messages   - append a message
//   - GET    /api/conversations/{key}/messages   - conversation history
//   - DELETE /api/conversations/{key}/messages   - clear history
//   - POST   /api/conversations/{key}/chat       - orchestrated chat turn
//   - POST   /api/conversations/{key}/transcribe - audio to text
//   - GET    /api/conversations/{key}/ws         - websocket upgrade
//   - GET    /api/conversations/{key}/transcript - HTML transcript
//   - GET    /health                             - liveness check
//   - GET    /health/ready                       - readiness check
//
// # Orchestration
//
// The chat handler is the layer above the session actor described by the
// design: it appends the user message, snapshots history, performs the
// external inference call, then appends the result as a separate actor
// call. There is deliberately no atomicity across those three steps - a
// second request landing between the snapshot and the append is a
// legitimate interleaving the history bound absorbs.
//
// # Errors
//
// Validation failures map to 400, a non-upgrade request on the websocket
// route to 426, and external service failures to 502. Error bodies are
// JSON: {"error": "message"}.
package gateway
