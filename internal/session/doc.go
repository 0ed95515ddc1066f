// Package session implements the per-conversation session actor and its
// routing layer.
//
// # Overview
//
// One Actor exists per conversation key and is the single authority over
// that conversation's in-memory state: a bounded message history and the
// set of live websocket connections. The Router maps keys to actors with
// single-instance-per-key placement.
//
// # Actor
//
// Every Actor operation acquires the actor's mutex, so operations on the
// same conversation are strictly serialized while different conversations
// proceed fully in parallel with no shared state. That single-writer-per-key
// discipline is what makes history mutation and broadcast race-free without
// any further coordination.
//
// Operations:
//
//   - Append(role, content): validate role, record in the history ring.
//     Appends are never pushed to live connections; the appending caller
//     already receives the message in its own response.
//   - History(): snapshot of the ring.
//   - Clear(): empty the ring; connections are untouched.
//   - Attach(conn): register an upgraded connection and acknowledge it.
//   - HandleInbound(conn, payload): answer ping frames with a pong on the
//     origin connection; drop everything else.
//   - Detach / DetachWithError: remove a connection.
//   - Notify(payload): best-effort broadcast for server-initiated events.
//
// # Registry
//
// The Registry tracks the live connection set. Broadcast delivers to each
// connection at most once per call; a failed send is logged and evicts
// that connection without aborting delivery to the rest.
//
// # Router
//
// Router.Resolve performs a guarded insert-if-absent on the key-to-actor
// table: concurrent first access for an unseen key always yields exactly
// one actor. The table starts empty and entries are never removed for the
// life of the process.
package session
