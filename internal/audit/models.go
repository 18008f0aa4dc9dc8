// Package audit records who did what to which trial. Entries are append-only;
// nothing in the system updates or deletes them. Recording is best-effort by
// design: a failed audit write must never fail the operation it describes,
// but every failure is logged and counted so silent loss is observable.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "trialgate/pkg/domain"
)

// Action classifies audit entries. The set is closed: stores and consumers
// may rely on it being exhaustive.
type Action string

const (
	ActionTrialCreated         Action = "trial_created"
	ActionTrialUpdated         Action = "trial_updated"
	ActionTrialStatusChanged   Action = "trial_status_changed"
	ActionTrialUnblinded       Action = "trial_unblinded"
	ActionParticipantEnrolled  Action = "participant_enrolled"
	ActionParticipantUnblinded Action = "participant_unblinded"
	ActionParticipantWithdrawn Action = "participant_withdrawn"
	ActionDataExport           Action = "data_export"
	ActionUserCreated          Action = "user_created"
	ActionUserLogin            Action = "user_login"
)

var validActions = map[Action]struct{}{
	ActionTrialCreated:         {},
	ActionTrialUpdated:         {},
	ActionTrialStatusChanged:   {},
	ActionTrialUnblinded:       {},
	ActionParticipantEnrolled:  {},
	ActionParticipantUnblinded: {},
	ActionParticipantWithdrawn: {},
	ActionDataExport:           {},
	ActionUserCreated:          {},
	ActionUserLogin:            {},
}

// Valid reports whether a is one of the closed set of actions.
func (a Action) Valid() bool {
	_, ok := validActions[a]
	return ok
}

// Entry is a single audit record. Details holds action-specific data such as
// unblind reasons, attempt outcomes, and cascade counts.
type Entry struct {
	ID            uuid.UUID         `json:"id"`
	UserID        id.UserID         `json:"userId"`
	Action        Action            `json:"action"`
	Details       map[string]any    `json:"details"`
	IPAddress     string            `json:"ipAddress,omitempty"`
	UserAgent     string            `json:"userAgent,omitempty"`
	Device        string            `json:"device,omitempty"`
	TrialID       *id.TrialID       `json:"trialId,omitempty"`
	ParticipantID *id.ParticipantID `json:"participantId,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Filter narrows audit listings. Zero values mean "no constraint".
type Filter struct {
	Action  Action
	TrialID id.TrialID
	Limit   int
}

// Store is the append-only persistence interface. Implementations return
// entries newest first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}
