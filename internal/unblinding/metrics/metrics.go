// Package metrics exposes Prometheus metrics for the unblinding workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for unblinding.
type Metrics struct {
	ParticipantUnblinds prometheus.Counter
	StudyUnblinds       prometheus.Counter
	Denied              *prometheus.CounterVec
}

// New creates and registers all unblinding metrics.
func New() *Metrics {
	return build(promauto.With(prometheus.DefaultRegisterer))
}

// NewForTesting creates metrics on a private registry so tests can construct
// services repeatedly without duplicate registration panics.
func NewForTesting() *Metrics {
	return build(promauto.With(prometheus.NewRegistry()))
}

func build(factory promauto.Factory) *Metrics {
	return &Metrics{
		ParticipantUnblinds: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_participant_unblinds_total",
			Help: "Total number of successful participant unblinds",
		}),
		StudyUnblinds: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_study_unblinds_total",
			Help: "Total number of successful study-wide unblinds",
		}),
		Denied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_unblind_denied_total",
			Help: "Total number of denied unblind requests, by scope and reason",
		}, []string{"scope", "reason"}),
	}
}
