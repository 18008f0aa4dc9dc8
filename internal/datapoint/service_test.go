package datapoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/datapoint/models"
	datapointstore "trialgate/internal/datapoint/store/datapoint"
	pmodels "trialgate/internal/participant/models"
	participantstore "trialgate/internal/participant/store/participant"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store        *datapointstore.MemoryStore
	participants *participantstore.MemoryStore
	service      *Service
	ctx          context.Context
	trialID      id.TrialID
	participant  *pmodels.Participant
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = datapointstore.NewMemory()
	s.participants = participantstore.NewMemory()
	s.service = New(s.store, s.participants)
	s.ctx = context.Background()
	s.trialID = id.TrialID(uuid.New())
	s.participant = s.enroll("P000000001")
}

func (s *ServiceSuite) enroll(code string) *pmodels.Participant {
	now := time.Now()
	p := &pmodels.Participant{
		ID:              id.ParticipantID(uuid.New()),
		TrialID:         s.trialID,
		ParticipantCode: code,
		Status:          pmodels.StatusEnrolled,
		EnrolledAt:      now,
		UpdatedAt:       now,
	}
	s.Require().NoError(s.participants.Create(s.ctx, p))
	return p
}

func (s *ServiceSuite) TestIngestClassifiesAndPersists() {
	raw := json.RawMessage(`{"heartRate": 150}`)
	result, err := s.service.Ingest(s.ctx, "P000000001", "VitalSigns", raw)
	s.Require().NoError(err)

	s.True(result.IsAlert)
	s.Equal(models.SeverityMedium, result.Severity)

	points, err := s.store.ListByParticipant(s.ctx, s.participant.ID)
	s.Require().NoError(err)
	s.Require().Len(points, 1)
	s.Equal(s.trialID, points[0].TrialID, "trial id is denormalized from the participant")
	s.True(points[0].IsAlert)
}

func (s *ServiceSuite) TestIngestUnknownParticipant() {
	_, err := s.service.Ingest(s.ctx, "P999999999", "VitalSigns", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestIngestRejectsUnknownType() {
	_, err := s.service.Ingest(s.ctx, "P000000001", "MoodDiary", json.RawMessage(`{}`))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	points, err := s.store.ListByParticipant(s.ctx, s.participant.ID)
	s.Require().NoError(err)
	s.Empty(points, "rejected data must not be stored")
}

func (s *ServiceSuite) TestAlertsSummary() {
	now := time.Now()
	ctx := requestcontext.WithTime(s.ctx, now)
	other := s.enroll("P000000002")

	ingest := func(ctx context.Context, code, typ, payload string) {
		_, err := s.service.Ingest(ctx, code, typ, json.RawMessage(payload))
		s.Require().NoError(err)
	}

	old := requestcontext.WithTime(s.ctx, now.Add(-48*time.Hour))
	ingest(old, "P000000001", "EmergencyCall", `{}`)
	ingest(ctx, "P000000001", "VitalSigns", `{"heartRate": 140}`)
	ingest(ctx, other.ParticipantCode, "SideEffect", `{"description":"rash","severity":"severe"}`)
	ingest(ctx, "P000000001", "MedicationIntake", `{"medication":"lisinopril","taken":true}`)

	summary, err := s.service.Alerts(ctx, s.trialID, "")
	s.Require().NoError(err)

	s.Equal(3, summary.Total, "non-alert data points are excluded")
	s.Equal(2, summary.Last24Hours)
	s.Equal(2, summary.UniqueParticipants)
	s.Equal(1, summary.BySeverity[models.SeverityCritical])
	s.Equal(1, summary.BySeverity[models.SeverityMedium])
	s.Equal(1, summary.BySeverity[models.SeverityHigh])

	critical, err := s.service.Alerts(ctx, s.trialID, models.SeverityCritical)
	s.Require().NoError(err)
	s.Equal(1, critical.Total, "severity filter narrows the summary")
	s.Equal(1, critical.UniqueParticipants)
	s.Require().Len(critical.Alerts, 1)
	s.Equal(models.TypeEmergencyCall, critical.Alerts[0].Type)
}

func (s *ServiceSuite) TestListByParticipantFilters() {
	ingest := func(typ, payload string) {
		_, err := s.service.Ingest(s.ctx, "P000000001", typ, json.RawMessage(payload))
		s.Require().NoError(err)
	}
	ingest("VitalSigns", `{"heartRate": 70}`)
	ingest("VitalSigns", `{"heartRate": 72}`)
	ingest("QualityOfLife", `{"score": 8}`)

	vitals, err := s.service.ListByParticipant(s.ctx, s.participant.ID, ListOptions{Type: models.TypeVitalSigns})
	s.Require().NoError(err)
	s.Require().Len(vitals, 2)
	for _, dp := range vitals {
		s.Equal(models.TypeVitalSigns, dp.Type)
	}

	capped, err := s.service.ListByParticipant(s.ctx, s.participant.ID, ListOptions{Limit: 1})
	s.Require().NoError(err)
	s.Len(capped, 1)

	all, err := s.service.ListByParticipant(s.ctx, s.participant.ID, ListOptions{})
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *ServiceSuite) TestAggregate() {
	now := time.Now()
	ctx := requestcontext.WithTime(s.ctx, now)

	ingest := func(ctx context.Context, typ, payload string) {
		_, err := s.service.Ingest(ctx, "P000000001", typ, json.RawMessage(payload))
		s.Require().NoError(err)
	}

	ingest(ctx, "VitalSigns", `{"heartRate": 150}`)
	ingest(ctx, "VitalSigns", `{"heartRate": 70}`)
	ingest(ctx, "QualityOfLife", `{"score": 7}`)
	// Outside the 30-day window.
	ingest(requestcontext.WithTime(s.ctx, now.AddDate(0, 0, -45)), "EmergencyCall", `{}`)

	agg, err := s.service.Aggregate(ctx, s.trialID)
	s.Require().NoError(err)

	s.Equal(3, agg.TotalDataPoints)
	s.Equal(2, agg.ByType[models.TypeVitalSigns])
	s.Equal(1, agg.ByType[models.TypeQualityOfLife])
	s.Equal(1, agg.AlertCount)
	s.Equal(1, agg.AlertsByType[models.TypeVitalSigns])
	s.Equal(1, agg.SeverityDistribution[models.SeverityMedium])

	s.Require().Len(agg.DailyActivity, 31)
	s.Equal(3, agg.DailyActivity[30].Count, "today is the last bucket")
	s.Equal(1, agg.DailyActivity[30].Alerts)
}
