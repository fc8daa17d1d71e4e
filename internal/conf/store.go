package conf

import (
	"sync"
	"sync/atomic"
)

// Store holds the active configuration snapshot. Readers call Load once per
// unit of work and keep using that snapshot; writers replace it atomically.
// Snapshots must be treated as read-only.
type Store struct {
	current atomic.Pointer[Settings]
	writeMu sync.Mutex
	version atomic.Uint64
}

// NewStore returns a store holding a sanitized copy of initial.
// A nil initial uses Default().
func NewStore(initial *Settings) *Store {
	s := &Store{}
	if initial == nil {
		initial = Default()
	} else {
		initial = initial.Clone()
		Sanitize(initial)
	}
	s.current.Store(initial)
	s.version.Store(1)
	return s
}

// Load returns the current snapshot
func (s *Store) Load() *Settings {
	return s.current.Load()
}

// Version increments on every replacement
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Swap installs a sanitized copy of next and returns the previous snapshot
// along with the sanitize notes.
func (s *Store) Swap(next *Settings) (*Settings, []string) {
	next = next.Clone()
	notes := Sanitize(next)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	prev := s.current.Swap(next)
	s.version.Add(1)
	return prev, notes
}

// Update applies fn to a copy of the current snapshot and installs the result.
// Concurrent updates are serialized so none is lost.
func (s *Store) Update(fn func(*Settings)) (*Settings, []string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.current.Load().Clone()
	fn(next)
	notes := Sanitize(next)
	s.current.Store(next)
	s.version.Add(1)
	return next, notes
}
