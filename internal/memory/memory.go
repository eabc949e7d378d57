// Package memory holds the evolving cheatsheet shared across questions in a
// cumulative evaluation run. Exactly one Store exists per run; the loop
// controller owns it and is its only writer.
package memory

import "sync"

// Store is the versioned memory blob. Merge replaces the content wholesale --
// the curator produces the full next-state text, there is no diffing here, and
// no truncation: bounding oversized content is the curator's contract.
type Store struct {
	mu      sync.RWMutex
	content string
	version uint64
}

// NewStore creates a store with the given initial content. Initial content is
// empty for a cold start and a prior run's final memory for warm/bootstrap.
func NewStore(initial string) *Store {
	return &Store{content: initial}
}

// Restore recreates a store from a checkpoint snapshot, preserving the version
// counter so a resumed run continues the same trajectory.
func Restore(content string, version uint64) *Store {
	return &Store{content: content, version: version}
}

// Read returns the current content.
func (s *Store) Read() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// Version returns the monotonic merge counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Merge replaces the content with the curator's output and bumps the version.
// The new content is visible to the very next Read.
func (s *Store) Merge(next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = next
	s.version++
}
