package datapoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trialgate/internal/datapoint/models"
)

func heartRate(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		payload      models.Payload
		wantAlert    bool
		wantSeverity models.Severity
	}{
		{
			name:         "emergency call is always critical",
			payload:      models.EmergencyCallPayload{},
			wantAlert:    true,
			wantSeverity: models.SeverityCritical,
		},
		{
			name:         "severe side effect",
			payload:      models.SideEffectPayload{Description: "rash", Severity: "severe"},
			wantAlert:    true,
			wantSeverity: models.SeverityHigh,
		},
		{
			name:         "moderate side effect is not an alert",
			payload:      models.SideEffectPayload{Description: "nausea", Severity: "moderate"},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "symptom at threshold",
			payload:      models.SymptomReportPayload{Symptom: "headache", Severity: 8},
			wantAlert:    true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "symptom below threshold",
			payload:      models.SymptomReportPayload{Symptom: "headache", Severity: 5},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "tachycardia",
			payload:      models.VitalSignsPayload{HeartRate: heartRate(150)},
			wantAlert:    true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "bradycardia",
			payload:      models.VitalSignsPayload{HeartRate: heartRate(45)},
			wantAlert:    true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "normal heart rate",
			payload:      models.VitalSignsPayload{HeartRate: heartRate(72)},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
		{
			name: "hypertensive crisis overrides heart-rate severity",
			payload: models.VitalSignsPayload{
				HeartRate:     heartRate(150),
				BloodPressure: &models.BloodPressure{Systolic: 200, Diastolic: 95},
			},
			wantAlert:    true,
			wantSeverity: models.SeverityHigh,
		},
		{
			name: "high diastolic alone",
			payload: models.VitalSignsPayload{
				BloodPressure: &models.BloodPressure{Systolic: 130, Diastolic: 115},
			},
			wantAlert:    true,
			wantSeverity: models.SeverityHigh,
		},
		{
			name: "normal blood pressure with tachycardia keeps medium",
			payload: models.VitalSignsPayload{
				HeartRate:     heartRate(130),
				BloodPressure: &models.BloodPressure{Systolic: 120, Diastolic: 80},
			},
			wantAlert:    true,
			wantSeverity: models.SeverityMedium,
		},
		{
			name:         "empty vitals",
			payload:      models.VitalSignsPayload{},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "medication intake is never an alert",
			payload:      models.MedicationIntakePayload{Medication: "lisinopril", Taken: false},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "app usage is never an alert",
			payload:      models.AppUsagePayload{Screen: "diary", DurationSeconds: 300},
			wantAlert:    false,
			wantSeverity: models.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isAlert, severity := Classify(tt.payload)
			assert.Equal(t, tt.wantAlert, isAlert)
			assert.Equal(t, tt.wantSeverity, severity)
		})
	}
}
