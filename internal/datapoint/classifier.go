// Package datapoint implements observational data ingestion and the alert
// classifier that flags clinically significant events at write time.
package datapoint

import "trialgate/internal/datapoint/models"

// Classify inspects a parsed payload and decides whether it is an alert and
// at what severity. Pure and deterministic; the result is stored with the
// data point and never recomputed.
//
// For vital signs both the heart-rate and blood-pressure rules run: a
// triggering heart rate flags medium, and a triggering blood pressure flags
// high, overriding the heart-rate severity when both fire.
func Classify(payload models.Payload) (bool, models.Severity) {
	switch p := payload.(type) {
	case models.EmergencyCallPayload:
		return true, models.SeverityCritical

	case models.SideEffectPayload:
		if p.Severity == "severe" {
			return true, models.SeverityHigh
		}

	case models.SymptomReportPayload:
		if p.Severity >= 8 {
			return true, models.SeverityMedium
		}

	case models.VitalSignsPayload:
		isAlert := false
		severity := models.SeverityLow
		if p.HeartRate != nil && (*p.HeartRate > 120 || *p.HeartRate < 50) {
			isAlert = true
			severity = models.SeverityMedium
		}
		if p.BloodPressure != nil && (p.BloodPressure.Systolic > 180 || p.BloodPressure.Diastolic > 110) {
			isAlert = true
			severity = models.SeverityHigh
		}
		return isAlert, severity
	}

	return false, models.SeverityLow
}
