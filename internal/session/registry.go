package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry allocates and remembers thread IDs for session IDs.
//
// Registry is safe for concurrent use by multiple goroutines. The
// read-check-allocate-write sequence in Resolve runs under a single mutex so
// concurrent first-time resolutions of distinct sessions can neither lose a
// counter update nor hand the same thread ID to two sessions.
type Registry struct {
	mu      sync.Mutex
	threads map[uuid.UUID]int64
	next    int64
}

// NewRegistry creates an empty Registry. Thread IDs start at 1.
func NewRegistry() *Registry {
	return &Registry{
		threads: make(map[uuid.UUID]int64),
		next:    1,
	}
}

// Resolve returns the thread ID for sessionID, allocating the next unused
// one on first resolution. Repeat calls with the same sessionID are
// idempotent and have no side effect.
func (r *Registry) Resolve(sessionID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.threads[sessionID]; ok {
		return id
	}

	id := r.next
	r.next++
	r.threads[sessionID] = id
	return id
}

// Len reports the number of sessions resolved so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}
