// Package settings holds the current request settings of a chat session.
package settings

import (
	"sync"

	"rag-doc-assistant/internal/models"
)

// Store owns exactly one Settings value. Updates replace the whole value.
type Store struct {
	mu      sync.RWMutex
	current models.Settings
}

// NewStore validates initial and returns a store holding it.
func NewStore(initial models.Settings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Store{current: initial}, nil
}

// Current returns a copy of the active settings.
func (s *Store) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in next after validating it. An invalid value leaves the
// current settings untouched.
func (s *Store) Replace(next models.Settings) (models.Settings, error) {
	if err := next.Validate(); err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

// SelectProvider switches provider and falls back to its default model.
func (s *Store) SelectProvider(provider string) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.WithProvider(provider)
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}
