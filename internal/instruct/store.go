// Package instruct stores per-owner behavioral instructions consulted
// during message dispatch.
package instruct

import (
	"sync"

	"botfoundry/internal/types"
)

// Store is a guarded owner → instructions map. Absence means "use the
// message verbatim as the prompt".
type Store struct {
	mu           sync.RWMutex
	instructions map[types.UserID]string
}

// New builds an empty store.
func New() *Store {
	return &Store{instructions: make(map[types.UserID]string)}
}

// Get returns the instructions for owner, if any.
func (s *Store) Get(owner types.UserID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.instructions[owner]
	return text, ok
}

// Set replaces the instructions for owner.
func (s *Store) Set(owner types.UserID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions[owner] = text
}

// Clear removes the instructions for owner and reports whether any were
// set.
func (s *Store) Clear(owner types.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.instructions[owner]
	delete(s.instructions, owner)
	return ok
}
