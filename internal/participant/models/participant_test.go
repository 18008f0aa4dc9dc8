package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

func newParticipant() *Participant {
	return &Participant{
		ID:              id.ParticipantID(uuid.New()),
		TrialID:         id.TrialID(uuid.New()),
		ParticipantCode: "P123456789",
		AssignedGroup:   1,
		Status:          StatusEnrolled,
		EnrolledAt:      time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func TestBlindedViewOmitsAssignmentStructurally(t *testing.T) {
	p := newParticipant()
	p.IsUnblinded = true

	body, err := json.Marshal(p.Blinded())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))

	_, hasGroup := fields["assignedGroup"]
	_, hasUnblinded := fields["isUnblinded"]
	assert.False(t, hasGroup, "blinded view must not carry assignedGroup")
	assert.False(t, hasUnblinded, "blinded view must not carry isUnblinded")
	assert.Equal(t, "P123456789", fields["participantCode"])
}

func TestUnblindIsMonotonic(t *testing.T) {
	p := newParticipant()
	actor := id.UserID(uuid.New())
	now := time.Now()

	require.NoError(t, p.CanUnblind())
	p.ApplyUnblind(now, actor)

	assert.True(t, p.IsUnblinded)
	assert.Equal(t, 1, p.AssignedGroup, "unblinding must not touch the assignment")

	err := p.CanUnblind()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyUnblinded))
	assert.Equal(t, 1, p.AssignedGroup)
}

func TestWithdraw(t *testing.T) {
	p := newParticipant()

	require.NoError(t, p.CanWithdraw())
	p.ApplyWithdraw(time.Now())
	assert.Equal(t, StatusWithdrawn, p.Status)

	err := p.CanWithdraw()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"enrolled", "active", "completed", "withdrawn"} {
		_, err := ParseStatus(valid)
		require.NoError(t, err)
	}
	_, err := ParseStatus("screening")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
