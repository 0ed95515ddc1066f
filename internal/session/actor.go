// ABOUTME: Session actor owning one conversation's history and connection set.
// ABOUTME: A single mutex strictly serializes every operation on the actor.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/parley-gateway/internal/history"
)

// ErrInvalidRole indicates a role outside user/assistant/system.
var ErrInvalidRole = errors.New("invalid role")

// Actor is the single authority over one conversation's in-memory state.
// Operations on the same actor are strictly serialized by its mutex;
// actors for different keys share nothing and run fully in parallel.
type Actor struct {
	Key string

	mu       sync.Mutex
	ring     *history.Ring
	registry *Registry
	logger   *slog.Logger
}

// NewActor creates an empty actor for the given conversation key.
// Pass nil logger for default.
func NewActor(key string, logger *slog.Logger) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conversation", key)
	return &Actor{
		Key:      key,
		ring:     history.NewRing(history.MaxMessages),
		registry: NewRegistry(logger),
		logger:   logger,
	}
}

// Append validates the role and records the message in the history ring.
// Empty content is accepted as-is. The append is never pushed to live
// connections: the appending caller already receives the message in its
// own response, and echoing it over the socket renders it twice on the
// originating client.
func (a *Actor) Append(role history.Role, content string) (history.Message, error) {
	if !history.ValidRole(role) {
		return history.Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	msg := history.Message{Role: role, Content: content}

	a.mu.Lock()
	a.ring.Append(msg)
	length := a.ring.Len()
	a.mu.Unlock()

	a.logger.Debug("message appended",
		"role", string(role),
		"history_len", length)
	return msg, nil
}

// History returns a snapshot of the conversation in append order. Never
// fails; an empty conversation yields an empty slice.
func (a *Actor) History() []history.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ring.Snapshot()
}

// Clear empties the history. Live connections are untouched.
func (a *Actor) Clear() {
	a.mu.Lock()
	a.ring.Clear()
	a.mu.Unlock()

	a.logger.Debug("history cleared")
}

// Attach registers an upgraded connection and acknowledges it on that
// connection alone. A connection whose ack cannot be delivered is
// detached immediately.
func (a *Actor) Attach(c *Conn) {
	a.mu.Lock()
	a.registry.Add(c)
	a.mu.Unlock()

	if err := c.Send(Frame{Type: FrameConnected}); err != nil {
		a.logger.Warn("connected ack failed",
			"conn_id", c.ID,
			"error", err)
		a.Detach(c)
	}
}

// Detach removes a connection from the registry. Safe to call for
// connections that were already evicted.
func (a *Actor) Detach(c *Conn) {
	a.mu.Lock()
	a.registry.Remove(c)
	a.mu.Unlock()
}

// DetachWithError removes a connection after a transport error. The error
// is logged; nothing is surfaced to the user.
func (a *Actor) DetachWithError(c *Conn, err error) {
	a.logger.Debug("connection errored",
		"conn_id", c.ID,
		"error", err)
	a.Detach(c)
}

// HandleInbound processes one payload read from a live connection. The
// only meaningful shape is a ping frame, answered with a pong on the same
// connection — never broadcast. Unknown types and unparseable payloads
// are logged and dropped without a reply; that is policy, not an error.
func (a *Actor) HandleInbound(c *Conn, payload []byte) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		a.logger.Debug("ignoring malformed payload",
			"conn_id", c.ID,
			"error", err)
		return
	}

	if f.Type != FramePing {
		a.logger.Debug("ignoring unknown frame",
			"conn_id", c.ID,
			"type", f.Type)
		return
	}

	if err := c.Send(Frame{Type: FramePong}); err != nil {
		a.logger.Warn("pong send failed, evicting connection",
			"conn_id", c.ID,
			"error", err)
		a.Detach(c)
	}
}

// Notify broadcasts payload to every live connection on this conversation.
// This is the entry point for server-initiated events (streaming tokens,
// transcription completion); request/response traffic never flows through
// here.
func (a *Actor) Notify(payload any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registry.Broadcast(payload)
}

// Connections returns the number of live connections. Observability only.
func (a *Actor) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Size()
}
