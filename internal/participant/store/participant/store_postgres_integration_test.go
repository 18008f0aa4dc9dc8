//go:build integration

package participant

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/participant/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	store   *PostgresStore
	ctx     context.Context
	trialID id.TrialID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "data_points", "participants", "trials"))
	s.trialID = s.insertTrial()
}

// insertTrial satisfies the participants foreign key.
func (s *PostgresStoreSuite) insertTrial() id.TrialID {
	trialID := id.TrialID(uuid.New())
	arms, err := json.Marshal([]map[string]string{{"name": "Treatment"}, {"name": "Placebo"}})
	s.Require().NoError(err)
	ratio, err := json.Marshal([]int{1, 1})
	s.Require().NoError(err)

	now := time.Now().UTC()
	_, err = s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO trials (id, title, description, status, arms, randomization_ratio,
			target_enrollment, is_unblinded, created_by, created_at, updated_at)
		VALUES ($1, 'Integration Trial', '', 'active', $2, $3, 10, FALSE, $4, $5, $5)
	`, uuid.UUID(trialID), arms, ratio, uuid.New(), now)
	s.Require().NoError(err)
	return trialID
}

func (s *PostgresStoreSuite) newParticipant(code string, group int) *models.Participant {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Participant{
		ID:              id.ParticipantID(uuid.New()),
		TrialID:         s.trialID,
		ParticipantCode: code,
		AssignedGroup:   group,
		Status:          models.StatusEnrolled,
		EnrolledAt:      now,
		UpdatedAt:       now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundTrip() {
	p := s.newParticipant("P000000001", 1)
	s.Require().NoError(s.store.Create(s.ctx, p))

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ParticipantCode, got.ParticipantCode)
	s.Equal(1, got.AssignedGroup)
	s.Equal(models.StatusEnrolled, got.Status)
	s.False(got.IsUnblinded)
	s.True(p.EnrolledAt.Equal(got.EnrolledAt))

	byCode, err := s.store.GetByCode(s.ctx, "P000000001")
	s.Require().NoError(err)
	s.Equal(p.ID, byCode.ID)
}

func (s *PostgresStoreSuite) TestUniqueCodeConstraint() {
	s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("P000000001", 0)))

	err := s.store.Create(s.ctx, s.newParticipant("P000000001", 1))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	exists, err := s.store.CodeExists(s.ctx, "P000000001")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestCountAndList() {
	s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("P000000001", 0)))
	p2 := s.newParticipant("P000000002", 1)
	s.Require().NoError(s.store.Create(s.ctx, p2))

	p2.ApplyWithdraw(time.Now().UTC())
	s.Require().NoError(s.store.Update(s.ctx, p2))

	count, err := s.store.CountByTrial(s.ctx, s.trialID)
	s.Require().NoError(err)
	s.Equal(2, count, "withdrawn participants keep their slot")

	listed, err := s.store.ListByTrial(s.ctx, s.trialID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal("P000000001", listed[0].ParticipantCode, "enrollment order")
}

func (s *PostgresStoreSuite) TestUnblindAll() {
	actor := id.UserID(uuid.New())
	earlier := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	pre := s.newParticipant("P000000001", 0)
	pre.ApplyUnblind(earlier, actor)
	s.Require().NoError(s.store.Create(s.ctx, pre))
	s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("P000000002", 1)))
	s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("P000000003", 0)))

	newly, err := s.store.UnblindAll(s.ctx, s.trialID, time.Now().UTC(), actor)
	s.Require().NoError(err)
	s.Equal(2, newly)

	got, err := s.store.Get(s.ctx, pre.ID)
	s.Require().NoError(err)
	s.True(got.UnblindedAt.Equal(earlier), "individually unblinded metadata preserved")

	count := 0
	for _, code := range []string{"P000000001", "P000000002", "P000000003"} {
		p, err := s.store.GetByCode(s.ctx, code)
		s.Require().NoError(err)
		if p.IsUnblinded {
			count++
		}
	}
	s.Equal(3, count)
}

func (s *PostgresStoreSuite) TestUpdateMissingRow() {
	err := s.store.Update(s.ctx, s.newParticipant("P000000009", 0))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
