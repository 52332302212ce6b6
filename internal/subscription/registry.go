package subscription

import (
	"sync"
	"time"
)

// Conn is the registry's view of one live subscriber connection. The
// transport layer owns the underlying socket; the registry only does
// bookkeeping. Send must deliver the payload as a single message within
// the deadline or return an error.
type Conn interface {
	Send(payload []byte, timeout time.Duration) error
	Close() error
}

// Registry tracks live subscriber connections per user. One lock guards
// the whole map; broadcast iteration works on a snapshot, so an
// in-progress fan-out never observes a set being mutated.
type Registry struct {
	mu   sync.RWMutex
	subs map[int64]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[int64]map[Conn]struct{})}
}

// Register moves a connection into the Active set for userID.
func (r *Registry) Register(userID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.subs[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection. Removing one that was already removed
// is a no-op, so disconnect handlers and failed-send cleanup can race.
func (r *Registry) Unregister(userID int64, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.subs, userID)
	}
}

// Subscribers returns a snapshot of the Active connections for userID.
func (r *Registry) Subscribers(userID int64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.subs[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Count reports the number of Active connections across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.subs {
		n += len(set)
	}
	return n
}

// CloseAll closes every registered connection and empties the registry.
// Used on shutdown after the listener has stopped accepting.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[int64]map[Conn]struct{})
	r.mu.Unlock()

	for _, set := range subs {
		for c := range set {
			c.Close()
		}
	}
}
