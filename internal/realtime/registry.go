package realtime

import "sync"

// Registry tracks which users currently hold at least one realtime
// connection. It is injected into the hub (and anything else that needs
// presence) rather than living in a package-level variable, so a clustered
// deployment can swap in a shared implementation.
type Registry interface {
	Register(userID string)
	Deregister(userID string)
	IsOnline(userID string) bool
	Online() []string
}

// MemoryRegistry is the single-process Registry implementation. It counts
// connections per user so a user with two tabs stays online until both close.
type MemoryRegistry struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{counts: make(map[string]int)}
}

// Register records a new connection for the user.
func (r *MemoryRegistry) Register(userID string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[userID]++
}

// Deregister removes one connection for the user.
func (r *MemoryRegistry) Deregister(userID string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts[userID] <= 1 {
		delete(r.counts, userID)
		return
	}
	r.counts[userID]--
}

// IsOnline reports whether the user has at least one open connection.
func (r *MemoryRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.counts[userID]
	return ok
}

// Online returns the ids of all currently connected users.
func (r *MemoryRegistry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.counts))
	for id := range r.counts {
		ids = append(ids, id)
	}
	return ids
}
