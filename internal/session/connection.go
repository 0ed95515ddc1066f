// ABOUTME: Wraps one live websocket connection attached to a session actor.
// ABOUTME: Serializes writes and applies a deadline so dead peers fail fast.

package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single frame write. A peer that cannot drain a
// frame within this window errors out and gets evicted by the caller.
const writeTimeout = 10 * time.Second

// Frame is the JSON envelope exchanged over a connection.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Frame types understood by the session layer.
const (
	FrameConnected = "connected"
	FramePing      = "ping"
	FramePong      = "pong"
)

// transport is the subset of *websocket.Conn the session layer needs,
// narrowed so tests can substitute a failing peer.
type transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live real-time connection on a conversation. It belongs to
// the registry of exactly one actor for its lifetime.
type Conn struct {
	ID string

	ws transport
	mu sync.Mutex // gorilla allows one concurrent writer per connection
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws transport) *Conn {
	return &Conn{ID: uuid.New().String(), ws: ws}
}

// Send marshals payload as JSON and writes it as a single text frame.
func (c *Conn) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.ws.Close()
}
