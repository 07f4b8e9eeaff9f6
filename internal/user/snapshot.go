package user

import (
	"sync"
	"time"
)

// Snapshot is the last server-confirmed copy of the user collection,
// used as the diff baseline. It is immutable once taken: pushes
// replace it wholesale, never merge into it.
type Snapshot struct {
	Users []User
	Taken time.Time
}

// Store holds the current snapshot for one scope.
type Store struct {
	mu      sync.Mutex
	current *Snapshot
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace installs a new snapshot built from a server push.
func (s *Store) Replace(users []User) *Snapshot {
	snap := &Snapshot{Users: cloneAll(users), Taken: time.Now()}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap
}

// Current returns the installed snapshot, or nil before the first
// push.
func (s *Store) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clear drops the snapshot, for view deactivation.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}
