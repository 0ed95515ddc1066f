// ABOUTME: Maps conversation keys to their single session actor instance.
// ABOUTME: Lazily constructs actors under one mutex so a key never gets two.

package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrEmptyKey indicates a missing or empty conversation key.
var ErrEmptyKey = errors.New("conversation key is required")

// Router owns the process-wide key-to-actor table. It starts empty, grows
// on demand, and holds no conversation data itself. Entries are never
// removed for the life of the process.
type Router struct {
	mu     sync.Mutex
	actors map[string]*Actor
	logger *slog.Logger
}

// NewRouter creates an empty router. Pass nil logger for default.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		actors: make(map[string]*Actor),
		logger: logger.With("component", "router"),
	}
}

// Resolve returns the actor for key, constructing it on first reference.
// The check-and-insert runs under one mutex, so concurrent first access
// for an unseen key cannot construct two actors. Keys are opaque,
// caller-supplied strings; only emptiness is rejected.
func (r *Router) Resolve(key string) (*Actor, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[key]; ok {
		return a, nil
	}

	a := NewActor(key, r.logger)
	r.actors[key] = a
	r.logger.Debug("actor created",
		"conversation", key,
		"total_actors", len(r.actors))
	return a, nil
}

// Size returns the number of resident actors. Observability only.
func (r *Router) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}
