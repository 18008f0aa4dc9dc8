// Package models defines the Trial aggregate.
//
// Invariants:
//   - Title is non-empty and at most 200 characters
//   - Arms is a non-empty ordered sequence; the index IS the group identifier
//   - RandomizationRatio holds positive weights, normalized to arms length at
//     time of use (see NormalizedRatio)
//   - Status transitions are caller-driven: draft→active, active→paused,
//     active→completed, paused→active, paused→completed; completed is terminal
//   - IsUnblinded flips once, monotonically, never reset; UnblindedAt and
//     UnblindedBy are set exactly once, together, on that transition
package models

import (
	"strconv"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Status is the trial lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ParseStatus validates an external status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be one of draft, active, paused, completed")
}

var allowedTransitions = map[Status][]Status{
	StatusDraft:     {StatusActive},
	StatusActive:    {StatusPaused, StatusCompleted},
	StatusPaused:    {StatusActive, StatusCompleted},
	StatusCompleted: {},
}

// CanTransitionTo reports whether a caller-driven transition s→target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Arm is one treatment group. Participants reference arms by index only;
// the name is what blinding hides.
type Arm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TreatmentAssignment maps a group index back to its arm once unblinded.
type TreatmentAssignment struct {
	Group       int    `json:"group"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Trial is the aggregate root for a clinical trial.
type Trial struct {
	ID                 id.TrialID `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Status             Status     `json:"status"`
	Arms               []Arm      `json:"arms"`
	RandomizationRatio []int      `json:"randomizationRatio"`
	TargetEnrollment   int        `json:"targetEnrollment"`
	IsUnblinded        bool       `json:"isUnblinded"`
	UnblindedAt        *time.Time `json:"unblindedAt,omitempty"`
	UnblindedBy        *id.UserID `json:"unblindedBy,omitempty"`
	CreatedBy          id.UserID  `json:"createdBy"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// NewTrial constructs a draft trial, validating structural invariants.
func NewTrial(trialID id.TrialID, title, description string, arms []Arm, ratio []int, targetEnrollment int, createdBy id.UserID, now time.Time) (*Trial, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(title) > 200 {
		return nil, dErrors.New(dErrors.CodeValidation, "title must be 200 characters or less")
	}
	if len(arms) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one arm is required")
	}
	for _, arm := range arms {
		if arm.Name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "every arm needs a name")
		}
	}
	if targetEnrollment <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "targetEnrollment must be positive")
	}
	for _, w := range ratio {
		if w <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "randomization weights must be positive")
		}
	}

	return &Trial{
		ID:                 trialID,
		Title:              title,
		Description:        description,
		Status:             StatusDraft,
		Arms:               arms,
		RandomizationRatio: ratio,
		TargetEnrollment:   targetEnrollment,
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (t *Trial) IsActive() bool {
	return t.Status == StatusActive
}

// CanChangeStatusTo checks a caller-driven status transition.
func (t *Trial) CanChangeStatusTo(target Status) error {
	if !t.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvalidState, "cannot transition trial from "+string(t.Status)+" to "+string(target))
	}
	return nil
}

// ApplyStatus transitions the trial. Call CanChangeStatusTo first.
func (t *Trial) ApplyStatus(target Status, now time.Time) {
	t.Status = target
	t.UpdatedAt = now
}

// CanUnblind checks the study-level unblind preconditions that depend on
// trial state (the workflow validates reason and confirmation before this).
func (t *Trial) CanUnblind() error {
	if t.IsUnblinded {
		return dErrors.New(dErrors.CodeAlreadyUnblinded, "trial is already unblinded")
	}
	if t.Status == StatusDraft {
		return dErrors.New(dErrors.CodeInvalidState, "cannot unblind a draft trial")
	}
	return nil
}

// ApplyUnblind flips the one-way unblind switch. Call CanUnblind first.
func (t *Trial) ApplyUnblind(now time.Time, by id.UserID) {
	t.IsUnblinded = true
	t.UnblindedAt = &now
	t.UnblindedBy = &by
	t.UpdatedAt = now
}

// NormalizedRatio returns the randomization weights adjusted to arms length:
// extra weights are truncated, missing ones padded with weight 1. Edit
// history can leave the stored ratio transiently out of sync with arms; the
// enrollment path always randomizes over exactly one weight per arm.
func (t *Trial) NormalizedRatio() []int {
	n := len(t.Arms)
	out := make([]int, n)
	for i := range out {
		if i < len(t.RandomizationRatio) {
			out[i] = t.RandomizationRatio[i]
		} else {
			out[i] = 1
		}
	}
	return out
}

// TreatmentMapping returns the full arm-index → treatment table. Only exposed
// after an unblind transition succeeds.
func (t *Trial) TreatmentMapping() []TreatmentAssignment {
	mapping := make([]TreatmentAssignment, len(t.Arms))
	for i, arm := range t.Arms {
		mapping[i] = TreatmentAssignment{Group: i, Name: arm.Name, Description: arm.Description}
	}
	return mapping
}

// BlindedGroupLabel is the neutral label used wherever an assignment must be
// shown without revealing the arm, e.g. "Group 0".
func BlindedGroupLabel(group int) string {
	return "Group " + strconv.Itoa(group)
}

// ArmLabel returns the display label for a group index in an unblinded
// context: the arm name, or the neutral group label when the index has no
// named arm.
func (t *Trial) ArmLabel(group int) string {
	if group >= 0 && group < len(t.Arms) && t.Arms[group].Name != "" {
		return t.Arms[group].Name
	}
	return BlindedGroupLabel(group)
}
