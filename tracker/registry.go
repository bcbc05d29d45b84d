package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps owners to their single tracking session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new idle session for owner. It returns
// ErrAlreadyTracking, leaving the existing session untouched, when owner
// already has one.
func (r *Registry) Create(owner string, startedAt time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[owner]; ok {
		return nil, ErrAlreadyTracking
	}
	s := &Session{
		Owner:     owner,
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		state:     StateIdle,
	}
	r.sessions[owner] = s
	return s, nil
}

// Get returns owner's session.
func (r *Registry) Get(owner string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	return s, ok
}

// Remove unregisters and returns owner's session.
func (r *Registry) Remove(owner string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[owner]
	if ok {
		delete(r.sessions, owner)
	}
	return s, ok
}

// removeSession unregisters s only if it is still the owner's current session.
func (r *Registry) removeSession(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.Owner]; ok && cur == s {
		delete(r.sessions, s.Owner)
		return true
	}
	return false
}

func (r *Registry) isCurrent(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[s.Owner] == s
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Owners returns the owners with an active session, sorted.
func (r *Registry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for o := range r.sessions {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}
