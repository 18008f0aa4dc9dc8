package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/audit"
	id "trialgate/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) appendEntry(action audit.Action, trialID *id.TrialID) audit.Entry {
	entry := audit.Entry{
		ID:        uuid.New(),
		UserID:    id.UserID(uuid.New()),
		Action:    action,
		Details:   map[string]any{},
		TrialID:   trialID,
		Timestamp: time.Now(),
	}
	require.NoError(s.T(), s.store.Append(s.ctx, entry))
	return entry
}

func (s *MemoryStoreSuite) TestListNewestFirst() {
	first := s.appendEntry(audit.ActionTrialCreated, nil)
	second := s.appendEntry(audit.ActionUserLogin, nil)

	entries, err := s.store.List(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(second.ID, entries[0].ID)
	s.Equal(first.ID, entries[1].ID)
}

func (s *MemoryStoreSuite) TestListFiltersByAction() {
	s.appendEntry(audit.ActionTrialCreated, nil)
	s.appendEntry(audit.ActionUserLogin, nil)
	s.appendEntry(audit.ActionUserLogin, nil)

	entries, err := s.store.List(s.ctx, audit.Filter{Action: audit.ActionUserLogin})
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *MemoryStoreSuite) TestListFiltersByTrial() {
	trialA := id.TrialID(uuid.New())
	trialB := id.TrialID(uuid.New())
	s.appendEntry(audit.ActionParticipantEnrolled, &trialA)
	s.appendEntry(audit.ActionParticipantEnrolled, &trialB)
	s.appendEntry(audit.ActionTrialUnblinded, &trialA)

	entries, err := s.store.List(s.ctx, audit.Filter{TrialID: trialA})
	s.Require().NoError(err)
	s.Len(entries, 2)
	for _, e := range entries {
		s.Equal(trialA, *e.TrialID)
	}
}

func (s *MemoryStoreSuite) TestListHonorsLimit() {
	for range 5 {
		s.appendEntry(audit.ActionUserLogin, nil)
	}

	entries, err := s.store.List(s.ctx, audit.Filter{Limit: 3})
	s.Require().NoError(err)
	s.Len(entries, 3)
}
