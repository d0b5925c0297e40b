package relay

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"
)

// ErrDuplicateIdentifier is returned by Register when a live connection
// already uses the identifier. A correct transport never triggers it.
var ErrDuplicateIdentifier = errors.New("duplicate connection identifier")

// Conn is one live client session as seen by the relay. Send must not block:
// transports queue or drop and report the outcome through the error.
type Conn interface {
	ID() string
	ConnectedAt() time.Time
	Send(msg *Message) error
}

// Registry tracks the currently open connections by identifier.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register adds conn. It fails with ErrDuplicateIdentifier if the
// identifier is already present.
func (r *Registry) Register(conn Conn) error {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; exists {
		return fmt.Errorf("register %q: %w", id, ErrDuplicateIdentifier)
	}
	r.conns[id] = conn
	return nil
}

// Unregister removes conn if it is the handle registered under its
// identifier. Absent or stale handles are ignored; it reports whether an
// entry was removed.
func (r *Registry) Unregister(conn Conn) bool {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[id]; !ok || current != conn {
		return false
	}
	delete(r.conns, id)
	return true
}

// UnregisterID removes whatever connection is registered under id.
func (r *Registry) UnregisterID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Lookup returns the connection registered under id.
func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return conn, ok
}

// AllExcept returns every registered connection other than id. The set is
// captured when AllExcept is called; registrations or removals that happen
// while the caller iterates are not observed.
func (r *Registry) AllExcept(id string) iter.Seq[Conn] {
	snapshot := r.snapshot(id)
	return func(yield func(Conn) bool) {
		for _, conn := range snapshot {
			if !yield(conn) {
				return
			}
		}
	}
}

func (r *Registry) snapshot(except string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		if id == except {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// Size returns the number of live connections.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
