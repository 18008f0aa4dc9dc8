// Package models defines the Participant aggregate and its blinded view.
//
// The blinded view is structural, not cosmetic: BlindedParticipant has no
// assignedGroup or isUnblinded fields at all, so no serialization path can
// leak them. Handlers marshal the blinded type everywhere except the explicit
// unblind-result payload and single reads of individually unblinded
// participants.
package models

import (
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Status is the participant lifecycle state.
type Status string

const (
	StatusEnrolled  Status = "enrolled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusWithdrawn Status = "withdrawn"
)

// ParseStatus validates an external status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusEnrolled, StatusActive, StatusCompleted, StatusWithdrawn:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be one of enrolled, active, completed, withdrawn")
}

// Participant is the full record. AssignedGroup is set exactly once at
// enrollment and never reassigned; IsUnblinded flips once, via the unblinding
// workflow only.
type Participant struct {
	ID              id.ParticipantID `json:"id"`
	TrialID         id.TrialID       `json:"trialId"`
	ParticipantCode string           `json:"participantCode"`
	AssignedGroup   int              `json:"assignedGroup"`
	Status          Status           `json:"status"`
	IsUnblinded     bool             `json:"isUnblinded"`
	UnblindedAt     *time.Time       `json:"unblindedAt,omitempty"`
	UnblindedBy     *id.UserID       `json:"unblindedBy,omitempty"`
	EnrolledAt      time.Time        `json:"enrollmentDate"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// BlindedParticipant is what crosses the boundary in blinded contexts.
type BlindedParticipant struct {
	ID              id.ParticipantID `json:"id"`
	TrialID         id.TrialID       `json:"trialId"`
	ParticipantCode string           `json:"participantCode"`
	Status          Status           `json:"status"`
	EnrolledAt      time.Time        `json:"enrollmentDate"`
}

// Blinded returns the view with assignment fields structurally removed.
func (p *Participant) Blinded() BlindedParticipant {
	return BlindedParticipant{
		ID:              p.ID,
		TrialID:         p.TrialID,
		ParticipantCode: p.ParticipantCode,
		Status:          p.Status,
		EnrolledAt:      p.EnrolledAt,
	}
}

// CanUnblind checks the participant-level precondition.
func (p *Participant) CanUnblind() error {
	if p.IsUnblinded {
		return dErrors.New(dErrors.CodeAlreadyUnblinded, "participant is already unblinded")
	}
	return nil
}

// ApplyUnblind flips the one-way unblind switch. Call CanUnblind first.
func (p *Participant) ApplyUnblind(now time.Time, by id.UserID) {
	p.IsUnblinded = true
	p.UnblindedAt = &now
	p.UnblindedBy = &by
	p.UpdatedAt = now
}

// CanWithdraw checks the withdrawal precondition.
func (p *Participant) CanWithdraw() error {
	if p.Status == StatusWithdrawn {
		return dErrors.New(dErrors.CodeInvalidState, "participant is already withdrawn")
	}
	if p.Status == StatusCompleted {
		return dErrors.New(dErrors.CodeInvalidState, "participant has completed the trial")
	}
	return nil
}

// ApplyWithdraw marks the participant withdrawn. Withdrawn participants still
// count toward trial capacity; enrollment slots are not recycled.
func (p *Participant) ApplyWithdraw(now time.Time) {
	p.Status = StatusWithdrawn
	p.UpdatedAt = now
}
