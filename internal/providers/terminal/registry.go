package terminal

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the registry shard count when none is configured
const DefaultShards = 32

// Registry maps session ids to live sessions. It is split into shards with
// their own locks so operations on different ids rarely contend. Locks
// guard map access only and are never held across I/O.
type Registry struct {
	shards []*registryShard
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry with n shards
func NewRegistry(n int) *Registry {
	if n <= 0 {
		n = DefaultShards
	}
	r := &Registry{shards: make([]*registryShard, n)}
	for i := range r.shards {
		r.shards[i] = &registryShard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shard(id string) *registryShard {
	return r.shards[xxhash.Sum64String(id)%uint64(len(r.shards))]
}

// Insert stores s under id and returns the session it displaced, if any
func (r *Registry) Insert(id string, s *Session) *Session {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev := sh.sessions[id]
	sh.sessions[id] = s
	return prev
}

// Get looks up a session
func (r *Registry) Get(id string) (*Session, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	s, ok := sh.sessions[id]
	return s, ok
}

// Remove deletes id only while it still maps to s, so a session that
// replaced s under the same id is left alone.
func (r *Registry) Remove(id string, s *Session) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.sessions[id]; !ok || cur != s {
		return false
	}
	delete(sh.sessions, id)
	return true
}

// List returns a snapshot of all sessions
func (r *Registry) List() []*Session {
	var out []*Session
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
