// Package participant provides persistence implementations for the
// Participant aggregate.
package participant

import (
	"context"
	"sort"
	"sync"
	"time"

	"trialgate/internal/participant/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// MemoryStore is the in-memory participant store for dev mode and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[id.ParticipantID]models.Participant
	byCode       map[string]id.ParticipantID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		participants: make(map[id.ParticipantID]models.Participant),
		byCode:       make(map[string]id.ParticipantID),
	}
}

// Create persists a new participant. Returns sentinel.ErrConflict when the
// participant code is already taken; this is the uniqueness backstop behind
// the code generator's existence check.
func (s *MemoryStore) Create(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.participants[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byCode[p.ParticipantCode]; exists {
		return sentinel.ErrConflict
	}
	s.participants[p.ID] = *p
	s.byCode[p.ParticipantCode] = p.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participantID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.participants[participantID]
	return &p, nil
}

// CodeExists reports whether a participant code is already in use.
func (s *MemoryStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *MemoryStore) ListByTrial(_ context.Context, trialID id.TrialID) ([]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Participant
	for _, p := range s.participants {
		if p.TrialID == trialID {
			copied := p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out, nil
}

// CountByTrial counts all participants of a trial, withdrawn included:
// enrollment slots are never recycled.
func (s *MemoryStore) CountByTrial(_ context.Context, trialID id.TrialID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.participants {
		if p.TrialID == trialID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Update(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.participants[p.ID] = *p
	return nil
}

// UnblindAll flips isUnblinded on every still-blinded participant of the
// trial and returns how many were newly unblinded. Individually unblinded
// participants keep their original unblind metadata.
func (s *MemoryStore) UnblindAll(_ context.Context, trialID id.TrialID, now time.Time, by id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newly := 0
	for pid, p := range s.participants {
		if p.TrialID != trialID || p.IsUnblinded {
			continue
		}
		p.ApplyUnblind(now, by)
		s.participants[pid] = p
		newly++
	}
	return newly, nil
}
