// ABOUTME: Tests for the connection registry and its best-effort broadcast.
// ABOUTME: fakeTransport stands in for the websocket so peers can be failed on demand.

package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records written frames and can be flipped into a failing
// state to simulate a dead peer.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	fail   error
	closed bool
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// sent returns the recorded frames decoded as Frames.
func (f *fakeTransport) sent(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr Frame
		require.NoError(t, json.Unmarshal(raw, &fr))
		out = append(out, fr)
	}
	return out
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(nil)
	c1 := NewConn(&fakeTransport{})
	c2 := NewConn(&fakeTransport{})

	r.Add(c1)
	r.Add(c2)
	assert.Equal(t, 2, r.Size())

	r.Remove(c1)
	assert.Equal(t, 1, r.Size())

	// Removing an absent connection is a no-op.
	r.Remove(c1)
	assert.Equal(t, 1, r.Size())
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	r := NewRegistry(nil)
	ft1 := &fakeTransport{}
	ft2 := &fakeTransport{}
	r.Add(NewConn(ft1))
	r.Add(NewConn(ft2))

	r.Broadcast(Frame{Type: "event", Content: "hello"})

	for _, ft := range []*fakeTransport{ft1, ft2} {
		frames := ft.sent(t)
		require.Len(t, frames, 1)
		assert.Equal(t, "event", frames[0].Type)
		assert.Equal(t, "hello", frames[0].Content)
	}
}

func TestBroadcastEvictsFailedConnection(t *testing.T) {
	r := NewRegistry(nil)
	healthy := &fakeTransport{}
	dead := &fakeTransport{}
	dead.failWith(assert.AnError)

	r.Add(NewConn(healthy))
	r.Add(NewConn(dead))

	r.Broadcast(Frame{Type: "event"})

	// The failed peer is gone; the healthy one got the frame and stays.
	assert.Equal(t, 1, r.Size())
	require.Len(t, healthy.sent(t), 1)

	// A second broadcast only touches the survivor.
	r.Broadcast(Frame{Type: "event"})
	assert.Len(t, healthy.sent(t), 2)
	assert.Empty(t, dead.sent(t))
}
