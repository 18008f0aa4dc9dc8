// Package datapoint provides persistence implementations for data points.
package datapoint

import (
	"context"
	"sort"
	"sync"

	"trialgate/internal/datapoint/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// MemoryStore is the in-memory data point store for dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[id.DataPointID]models.DataPoint
}

func NewMemory() *MemoryStore {
	return &MemoryStore{points: make(map[id.DataPointID]models.DataPoint)}
}

func (s *MemoryStore) Create(_ context.Context, dp *models.DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.points[dp.ID]; exists {
		return sentinel.ErrConflict
	}
	s.points[dp.ID] = *dp
	return nil
}

func (s *MemoryStore) ListByParticipant(_ context.Context, participantID id.ParticipantID) ([]*models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DataPoint
	for _, dp := range s.points {
		if dp.ParticipantID == participantID {
			copied := dp
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByTrial(_ context.Context, trialID id.TrialID, filter models.Filter) ([]*models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DataPoint
	for _, dp := range s.points {
		if dp.TrialID != trialID {
			continue
		}
		if filter.Type != "" && dp.Type != filter.Type {
			continue
		}
		if filter.AlertsOnly && !dp.IsAlert {
			continue
		}
		if !filter.Since.IsZero() && dp.Timestamp.Before(filter.Since) {
			continue
		}
		copied := dp
		out = append(out, &copied)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(points []*models.DataPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})
}
