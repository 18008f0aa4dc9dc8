// Package trial provides the persistence implementations for the Trial
// aggregate. The consumer-side Store interface lives with the services that
// use it.
package trial

import (
	"context"
	"sort"
	"sync"

	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// MemoryStore is the in-memory trial store for dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	trials map[id.TrialID]models.Trial
}

func NewMemory() *MemoryStore {
	return &MemoryStore{trials: make(map[id.TrialID]models.Trial)}
}

func (s *MemoryStore) Create(_ context.Context, t *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trials[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.trials[t.ID] = *t
	return nil
}

func (s *MemoryStore) Get(_ context.Context, trialID id.TrialID) (*models.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trials[trialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := t
	return &copied, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Trial, 0, len(s.trials))
	for _, t := range s.trials {
		copied := t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, t *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trials[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.trials[t.ID] = *t
	return nil
}
