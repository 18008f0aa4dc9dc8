// Package models defines observational data points and their typed payloads.
//
// Payloads are a tagged union keyed by the data point type. Unknown types are
// rejected at ingestion instead of falling through to a benign default;
// malformed data must surface, not masquerade as "no alert".
package models

import (
	"encoding/json"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Severity is the clinical significance tier assigned at ingestion.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates an externally supplied severity filter.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown severity: "+s)
}

// Type is the observation kind. The wire value selects the payload shape.
type Type string

const (
	TypeVitalSigns       Type = "VitalSigns"
	TypeSymptomReport    Type = "SymptomReport"
	TypeSideEffect       Type = "SideEffect"
	TypeEmergencyCall    Type = "EmergencyCall"
	TypeMedicationIntake Type = "MedicationIntake"
	TypeQualityOfLife    Type = "QualityOfLife"
	TypeAppUsage         Type = "AppUsage"
	TypeOther            Type = "Other"
)

// ParseType validates an external type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeVitalSigns, TypeSymptomReport, TypeSideEffect, TypeEmergencyCall,
		TypeMedicationIntake, TypeQualityOfLife, TypeAppUsage, TypeOther:
		return Type(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown data point type: "+s)
}

// Payload is one variant of the tagged union.
type Payload interface {
	payloadType() Type
}

// BloodPressure is a systolic/diastolic reading in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// VitalSignsPayload carries device or self-reported vitals. All readings are
// optional; absent readings simply skip their classification rule.
type VitalSignsPayload struct {
	HeartRate     *float64       `json:"heartRate,omitempty"`
	BloodPressure *BloodPressure `json:"bloodPressure,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
}

func (VitalSignsPayload) payloadType() Type { return TypeVitalSigns }

// SymptomReportPayload is a self-reported symptom on a 0-10 scale.
type SymptomReportPayload struct {
	Symptom  string `json:"symptom"`
	Severity int    `json:"severity"`
	Notes    string `json:"notes,omitempty"`
}

func (SymptomReportPayload) payloadType() Type { return TypeSymptomReport }

// SideEffectPayload is a reported side effect graded mild/moderate/severe.
type SideEffectPayload struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

func (SideEffectPayload) payloadType() Type { return TypeSideEffect }

// EmergencyCallPayload records that the participant used the emergency
// contact feature. Always an alert regardless of content.
type EmergencyCallPayload struct {
	Notes string `json:"notes,omitempty"`
}

func (EmergencyCallPayload) payloadType() Type { return TypeEmergencyCall }

// MedicationIntakePayload records adherence events.
type MedicationIntakePayload struct {
	Medication string `json:"medication"`
	Taken      bool   `json:"taken"`
}

func (MedicationIntakePayload) payloadType() Type { return TypeMedicationIntake }

// QualityOfLifePayload is a periodic questionnaire score.
type QualityOfLifePayload struct {
	Score int `json:"score"`
}

func (QualityOfLifePayload) payloadType() Type { return TypeQualityOfLife }

// AppUsagePayload is app telemetry used for engagement tracking.
type AppUsagePayload struct {
	Screen          string `json:"screen"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (AppUsagePayload) payloadType() Type { return TypeAppUsage }

// OtherPayload is the escape hatch for observations that fit no structured
// type. Any well-formed JSON document is accepted; it never classifies as an
// alert.
type OtherPayload struct{}

func (OtherPayload) payloadType() Type { return TypeOther }

// ParsePayload decodes the raw payload into the variant selected by the type.
func ParsePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var (
		payload Payload
		err     error
	)
	switch t {
	case TypeVitalSigns:
		var p VitalSignsPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeSymptomReport:
		var p SymptomReportPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeSideEffect:
		var p SideEffectPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeEmergencyCall:
		var p EmergencyCallPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeMedicationIntake:
		var p MedicationIntakePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeQualityOfLife:
		var p QualityOfLifePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeAppUsage:
		var p AppUsagePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case TypeOther:
		if !json.Valid(raw) {
			return nil, dErrors.New(dErrors.CodeValidation, "payload is not valid JSON")
		}
		payload = OtherPayload{}
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown data point type: "+string(t))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed payload for type "+string(t))
	}
	return payload, nil
}

// DataPoint is one stored observation. TrialID is denormalized from the
// participant at creation time; IsAlert and Severity are computed once at
// ingestion and never recomputed.
type DataPoint struct {
	ID            id.DataPointID   `json:"id"`
	ParticipantID id.ParticipantID `json:"participantId"`
	TrialID       id.TrialID       `json:"trialId"`
	Type          Type             `json:"type"`
	Payload       json.RawMessage  `json:"payload"`
	Timestamp     time.Time        `json:"timestamp"`
	IsAlert       bool             `json:"isAlert"`
	Severity      Severity         `json:"severity"`
}

// Filter narrows data point listings.
type Filter struct {
	Type       Type
	AlertsOnly bool
	Since      time.Time
}
