package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Defaults seed new sessions.
type Defaults struct {
	RowLimit             int
	UseSelectionAtCursor bool
}

// Registry owns every session in the process.
type Registry struct {
	defaults Defaults

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(defaults Defaults) *Registry {
	return &Registry{defaults: defaults, sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(id, r.defaults)
	r.sessions[id] = s
	return s
}

// New creates a session under a fresh random id.
func (r *Registry) New() *Session {
	return r.GetOrCreate(uuid.NewString())
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove forgets the session and returns it, nil when unknown.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s
}

// IDs lists session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}
