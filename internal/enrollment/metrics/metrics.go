// Package metrics exposes Prometheus metrics for the enrollment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for enrollment.
type Metrics struct {
	Enrollments    prometheus.Counter
	Rejections     *prometheus.CounterVec
	CodeCollisions prometheus.Counter
}

// New creates and registers all enrollment metrics.
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
		Enrollments: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_enrollments_total",
			Help: "Total number of participants enrolled",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_enrollment_rejections_total",
			Help: "Total number of rejected enrollment attempts, by reason",
		}, []string{"reason"}),
		CodeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_enrollment_code_collisions_total",
			Help: "Total number of participant code collisions during generation",
		}),
	}
}
