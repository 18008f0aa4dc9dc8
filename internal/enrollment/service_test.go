package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"trialgate/internal/audit"
	auditmemory "trialgate/internal/audit/store/memory"
	pmodels "trialgate/internal/participant/models"
	participantstore "trialgate/internal/participant/store/participant"
	tmodels "trialgate/internal/trial/models"
	trialstore "trialgate/internal/trial/store/trial"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	participants *participantstore.MemoryStore
	trials       *trialstore.MemoryStore
	auditStore   *auditmemory.Store
	service      *Service
	ctx          context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.participants = participantstore.NewMemory()
	s.trials = trialstore.NewMemory()
	s.auditStore = auditmemory.New()
	recorder := audit.NewRecorder(s.auditStore)
	s.service = New(s.participants, s.trials, recorder)
	s.ctx = context.Background()
}

func (s *ServiceSuite) createTrial(status tmodels.Status, target int) *tmodels.Trial {
	trial, err := tmodels.NewTrial(id.TrialID(uuid.New()), "Hypertension Study", "",
		[]tmodels.Arm{{Name: "Treatment"}, {Name: "Placebo"}}, []int{1, 1}, target,
		id.UserID(uuid.New()), time.Now())
	s.Require().NoError(err)
	trial.Status = status
	s.Require().NoError(s.trials.Create(s.ctx, trial))
	return trial
}

func (s *ServiceSuite) TestEnrollReturnsBlindedView() {
	trial := s.createTrial(tmodels.StatusActive, 10)

	blinded, err := s.service.Enroll(s.ctx, trial.ID)
	s.Require().NoError(err)

	s.Regexp(`^P\d{9}$`, blinded.ParticipantCode)
	s.Equal(pmodels.StatusEnrolled, blinded.Status)
	s.Equal(trial.ID, blinded.TrialID)

	stored, err := s.participants.Get(s.ctx, blinded.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(stored.AssignedGroup, 0)
	s.Less(stored.AssignedGroup, len(trial.Arms))
	s.False(stored.IsUnblinded)
}

func (s *ServiceSuite) TestEnrollWritesAuditWithoutAssignment() {
	trial := s.createTrial(tmodels.StatusActive, 10)

	blinded, err := s.service.Enroll(s.ctx, trial.ID)
	s.Require().NoError(err)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{Action: audit.ActionParticipantEnrolled})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(blinded.ParticipantCode, entries[0].Details["participantCode"])
	s.NotContains(entries[0].Details, "assignedGroup")
	s.NotContains(entries[0].Details, "group")
}

func (s *ServiceSuite) TestEnrollUnknownTrial() {
	_, err := s.service.Enroll(s.ctx, id.TrialID(uuid.New()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEnrollRequiresActiveTrial() {
	for _, status := range []tmodels.Status{tmodels.StatusDraft, tmodels.StatusPaused, tmodels.StatusCompleted} {
		s.Run(string(status), func() {
			trial := s.createTrial(status, 10)
			_, err := s.service.Enroll(s.ctx, trial.ID)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		})
	}
}

func (s *ServiceSuite) TestEnrollEnforcesCapacity() {
	trial := s.createTrial(tmodels.StatusActive, 2)

	first, err := s.service.Enroll(s.ctx, trial.ID)
	s.Require().NoError(err)
	_, err = s.service.Enroll(s.ctx, trial.ID)
	s.Require().NoError(err)

	_, err = s.service.Enroll(s.ctx, trial.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded))

	// Withdrawing does not free the slot.
	p, err := s.participants.Get(s.ctx, first.ID)
	s.Require().NoError(err)
	p.ApplyWithdraw(time.Now())
	s.Require().NoError(s.participants.Update(s.ctx, p))

	_, err = s.service.Enroll(s.ctx, trial.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded))
}

func (s *ServiceSuite) TestConcurrentEnrollmentNeverOvershoots() {
	const target = 5
	trial := s.createTrial(tmodels.StatusActive, target)

	var g errgroup.Group
	for range target * 4 {
		g.Go(func() error {
			_, err := s.service.Enroll(s.ctx, trial.ID)
			if err != nil && !dErrors.HasCode(err, dErrors.CodeCapacityExceeded) {
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	count, err := s.participants.CountByTrial(s.ctx, trial.ID)
	s.Require().NoError(err)
	s.Equal(target, count)
}

func (s *ServiceSuite) TestEnrollSurfacesCodeExhaustion() {
	trial := s.createTrial(tmodels.StatusActive, 10)

	// A generator pinned to one suffix collides with itself once its code is
	// taken within the same millisecond window.
	s.service.codegen = &CodeGenerator{suffix: func() int { return 123 }}
	ctx := requestcontext.WithTime(s.ctx, time.Now())

	_, err := s.service.Enroll(ctx, trial.ID)
	s.Require().NoError(err)

	_, err = s.service.Enroll(ctx, trial.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCodeExhausted))
}
