package telemetry

import (
	"sync"

	"emgstream/internal/model"
)

// Store holds the most recently published pipeline snapshot. Publish is
// called only by the pipeline worker; Get may be called from any
// goroutine and always returns a complete snapshot, never a half-updated
// one.
type Store struct {
	mu   sync.RWMutex
	snap model.Snapshot
	has  bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Publish(snap model.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.has = true
	s.mu.Unlock()
}

func (s *Store) Get() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.has
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.snap = model.Snapshot{}
	s.has = false
	s.mu.Unlock()
}
