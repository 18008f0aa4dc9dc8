// Package domain holds shared value types used across feature modules.
//
// IDs are distinct named UUID types so the compiler rejects cross-entity
// assignment (a ParticipantID can never be passed where a TrialID is
// expected). Construct them via the Parse* functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "trialgate/pkg/domain-errors"
)

type (
	// UserID identifies an authenticated user (investigator, coordinator, admin).
	UserID uuid.UUID
	// TrialID identifies a clinical trial.
	TrialID uuid.UUID
	// ParticipantID identifies an enrolled participant.
	ParticipantID uuid.UUID
	// DataPointID identifies an ingested observation.
	DataPointID uuid.UUID
)

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TrialID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DataPointID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id TrialID) String() string       { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id DataPointID) String() string   { return uuid.UUID(id).String() }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id TrialID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ParticipantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DataPointID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TrialID) UnmarshalText(b []byte) error {
	parsed, err := ParseTrialID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ParticipantID) UnmarshalText(b []byte) error {
	parsed, err := ParseParticipantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID validates and converts an external string into a UserID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseTrialID validates and converts an external string into a TrialID.
func ParseTrialID(s string) (TrialID, error) {
	u, err := parseUUID(s)
	return TrialID(u), err
}

// ParseParticipantID validates and converts an external string into a ParticipantID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s)
	return ParticipantID(u), err
}

// ParseDataPointID validates and converts an external string into a DataPointID.
func ParseDataPointID(s string) (DataPointID, error) {
	u, err := parseUUID(s)
	return DataPointID(u), err
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
