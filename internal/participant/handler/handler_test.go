package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/audit"
	auditmemory "trialgate/internal/audit/store/memory"
	"trialgate/internal/enrollment"
	participantservice "trialgate/internal/participant/service"
	participantstore "trialgate/internal/participant/store/participant"
	tmodels "trialgate/internal/trial/models"
	trialstore "trialgate/internal/trial/store/trial"
	id "trialgate/pkg/domain"
	"trialgate/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router       chi.Router
	trials       *trialstore.MemoryStore
	participants *participantstore.MemoryStore
	ctx          context.Context
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.trials = trialstore.NewMemory()
	s.participants = participantstore.NewMemory()
	s.ctx = context.Background()

	recorder := audit.NewRecorder(auditmemory.New())
	logger := slog.Default()
	svc := participantservice.New(s.participants, recorder)
	enroller := enrollment.New(s.participants, s.trials, recorder)

	s.router = chi.NewRouter()
	New(svc, enroller, logger).Register(s.router)
}

func (s *HandlerSuite) createTrial(status tmodels.Status, target int) *tmodels.Trial {
	trial, err := tmodels.NewTrial(id.TrialID(uuid.New()), "Hypertension Study", "",
		[]tmodels.Arm{{Name: "Treatment"}, {Name: "Placebo"}}, []int{1, 1}, target,
		id.UserID(uuid.New()), time.Now())
	s.Require().NoError(err)
	trial.Status = status
	s.Require().NoError(s.trials.Create(s.ctx, trial))
	return trial
}

func (s *HandlerSuite) TestEnroll() {
	trial := s.createTrial(tmodels.StatusActive, 10)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/"+trial.ID.String()+"/participants", nil)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONHasKey(s.T(), rr, "participantCode")
	testutil.AssertJSONLacksKey(s.T(), rr, "assignedGroup")
	testutil.AssertJSONLacksKey(s.T(), rr, "isUnblinded")
}

func (s *HandlerSuite) TestEnrollInactiveTrial() {
	trial := s.createTrial(tmodels.StatusPaused, 10)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/"+trial.ID.String()+"/participants", nil)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_state")
}

func (s *HandlerSuite) TestEnrollFullTrial() {
	trial := s.createTrial(tmodels.StatusActive, 1)

	first := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/"+trial.ID.String()+"/participants", nil))
	testutil.AssertStatus(s.T(), first, http.StatusCreated)

	second := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/"+trial.ID.String()+"/participants", nil))
	testutil.AssertStatusAndError(s.T(), second, http.StatusBadRequest, "capacity_exceeded")
}

func (s *HandlerSuite) TestEnrollBadTrialID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/not-a-uuid/participants", nil)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *HandlerSuite) enrollOne(trial *tmodels.Trial) id.ParticipantID {
	rr := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/trials/"+trial.ID.String()+"/participants", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[struct {
		ID id.ParticipantID `json:"id"`
	}](s.T(), rr)
	return resp.ID
}

func (s *HandlerSuite) TestGetStaysBlindedAfterStudyUnblind() {
	trial := s.createTrial(tmodels.StatusActive, 10)
	participantID := s.enrollOne(trial)

	// Flip the trial flag; the participant record itself is still blinded
	// until the cascade touches it, and reads must stay gated on the
	// participant's own flag.
	trial.ApplyUnblind(time.Now(), id.UserID(uuid.New()))
	s.Require().NoError(s.trials.Update(s.ctx, trial))

	rr := testutil.DoRequest(s.router,
		testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+participantID.String()))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONLacksKey(s.T(), rr, "assignedGroup")
}

func (s *HandlerSuite) TestGetRevealsUnblindedParticipant() {
	trial := s.createTrial(tmodels.StatusActive, 10)
	participantID := s.enrollOne(trial)

	p, err := s.participants.Get(s.ctx, participantID)
	s.Require().NoError(err)
	p.ApplyUnblind(time.Now(), id.UserID(uuid.New()))
	s.Require().NoError(s.participants.Update(s.ctx, p))

	rr := testutil.DoRequest(s.router,
		testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+participantID.String()))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONHasKey(s.T(), rr, "assignedGroup")
}

func (s *HandlerSuite) TestListAlwaysBlinded() {
	trial := s.createTrial(tmodels.StatusActive, 10)
	participantID := s.enrollOne(trial)

	p, err := s.participants.Get(s.ctx, participantID)
	s.Require().NoError(err)
	p.ApplyUnblind(time.Now(), id.UserID(uuid.New()))
	s.Require().NoError(s.participants.Update(s.ctx, p))

	rr := testutil.DoRequest(s.router,
		testutil.NewRequest(s.T(), http.MethodGet, "/trials/"+trial.ID.String()+"/participants"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.NotContains(rr.Body.String(), "assignedGroup")
}

func (s *HandlerSuite) TestWithdraw() {
	trial := s.createTrial(tmodels.StatusActive, 10)
	participantID := s.enrollOne(trial)

	rr := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/participants/"+participantID.String()+"/withdraw", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	again := testutil.DoRequest(s.router,
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/participants/"+participantID.String()+"/withdraw", nil))
	testutil.AssertStatusAndError(s.T(), again, http.StatusBadRequest, "invalid_state")
}

func (s *HandlerSuite) TestGetUnknownParticipant() {
	rr := testutil.DoRequest(s.router,
		testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+uuid.NewString()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}
