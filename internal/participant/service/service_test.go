package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/audit"
	auditmemory "trialgate/internal/audit/store/memory"
	"trialgate/internal/participant/models"
	participantstore "trialgate/internal/participant/store/participant"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store      *participantstore.MemoryStore
	auditStore *auditmemory.Store
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = participantstore.NewMemory()
	s.auditStore = auditmemory.New()
	s.service = New(s.store, audit.NewRecorder(s.auditStore))
	s.ctx = context.Background()
}

func (s *ServiceSuite) enroll(trialID id.TrialID, code string, group int) *models.Participant {
	now := time.Now()
	p := &models.Participant{
		ID:              id.ParticipantID(uuid.New()),
		TrialID:         trialID,
		ParticipantCode: code,
		AssignedGroup:   group,
		Status:          models.StatusEnrolled,
		EnrolledAt:      now,
		UpdatedAt:       now,
	}
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *ServiceSuite) TestGetBlindsByDefault() {
	p := s.enroll(id.TrialID(uuid.New()), "P000000001", 1)

	view, err := s.service.Get(s.ctx, p.ID)
	s.Require().NoError(err)

	body, err := json.Marshal(view)
	s.Require().NoError(err)
	var fields map[string]any
	s.Require().NoError(json.Unmarshal(body, &fields))
	s.NotContains(fields, "assignedGroup")
	s.NotContains(fields, "isUnblinded")
	s.Equal("P000000001", fields["participantCode"])
}

func (s *ServiceSuite) TestGetRevealsAfterUnblind() {
	p := s.enroll(id.TrialID(uuid.New()), "P000000001", 1)
	p.ApplyUnblind(time.Now(), id.UserID(uuid.New()))
	s.Require().NoError(s.store.Update(s.ctx, p))

	view, err := s.service.Get(s.ctx, p.ID)
	s.Require().NoError(err)

	full, ok := view.(*models.Participant)
	s.Require().True(ok, "unblinded participants are returned in full")
	s.Equal(1, full.AssignedGroup)
	s.True(full.IsUnblinded)
}

func (s *ServiceSuite) TestGetUnknown() {
	_, err := s.service.Get(s.ctx, id.ParticipantID(uuid.New()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListIsAlwaysBlinded() {
	trialID := id.TrialID(uuid.New())
	p := s.enroll(trialID, "P000000001", 0)
	p.ApplyUnblind(time.Now(), id.UserID(uuid.New()))
	s.Require().NoError(s.store.Update(s.ctx, p))
	s.enroll(trialID, "P000000002", 1)

	listed, err := s.service.ListByTrial(s.ctx, trialID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)

	// Even the individually unblinded participant lists blinded.
	body, err := json.Marshal(listed)
	s.Require().NoError(err)
	s.NotContains(string(body), "assignedGroup")
}

func (s *ServiceSuite) TestWithdraw() {
	p := s.enroll(id.TrialID(uuid.New()), "P000000001", 0)

	blinded, err := s.service.Withdraw(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusWithdrawn, blinded.Status)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{Action: audit.ActionParticipantWithdrawn})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("P000000001", entries[0].Details["participantCode"])

	_, err = s.service.Withdraw(s.ctx, p.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}
