// Package memory provides the in-memory audit store used in dev mode and
// tests.
package memory

import (
	"context"
	"sync"

	"trialgate/internal/audit"
)

// Store keeps audit entries in memory, newest first.
type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

// Append adds an entry. Entries are never mutated after append.
func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries matching the filter, newest first.
func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if !filter.TrialID.IsNil() {
			if entry.TrialID == nil || *entry.TrialID != filter.TrialID {
				continue
			}
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
