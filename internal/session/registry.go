// ABOUTME: Tracks the live connection set for one session actor.
// ABOUTME: Broadcast is best-effort; a failed send evicts that connection only.

package session

import "log/slog"

// Registry is the set of live connections attached to one actor. Like the
// history ring it does no locking of its own: the owning actor serializes
// every call.
type Registry struct {
	conns  map[string]*Conn
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]*Conn),
		logger: logger,
	}
}

// Add registers a newly upgraded connection. Callers add each connection
// exactly once, at upgrade time.
func (r *Registry) Add(c *Conn) {
	r.conns[c.ID] = c
	r.logger.Debug("connection added",
		"conn_id", c.ID,
		"total_connections", len(r.conns))
}

// Remove unregisters a connection. No-op if it is not present.
func (r *Registry) Remove(c *Conn) {
	if _, ok := r.conns[c.ID]; !ok {
		return
	}
	delete(r.conns, c.ID)
	r.logger.Debug("connection removed",
		"conn_id", c.ID,
		"total_connections", len(r.conns))
}

// Broadcast sends payload to every registered connection, at most once
// each. A send failure is logged and evicts that connection; it never
// aborts delivery to the rest and never fails the call.
func (r *Registry) Broadcast(payload any) {
	for id, c := range r.conns {
		if err := c.Send(payload); err != nil {
			r.logger.Warn("send failed, evicting connection",
				"conn_id", id,
				"error", err)
			delete(r.conns, id)
		}
	}
}

// Size returns the number of live connections. Observability only.
func (r *Registry) Size() int {
	return len(r.conns)
}
