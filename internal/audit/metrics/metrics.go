package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit pipeline.
type Metrics struct {
	EntriesRecorded *prometheus.CounterVec
	WriteFailures   prometheus.Counter
	PublishFailures prometheus.Counter
}

// New creates and registers all audit metrics.
func New() *Metrics {
	return &Metrics{
		EntriesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_audit_entries_recorded_total",
			Help: "Total number of audit entries recorded, by action",
		}, []string{"action"}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_audit_write_failures_total",
			Help: "Total number of audit entries that could not be persisted",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_audit_publish_failures_total",
			Help: "Total number of audit entries that could not be mirrored to Kafka",
		}),
	}
}

// NewForTesting creates metrics on a private registry so tests can construct
// recorders repeatedly without duplicate registration panics.
func NewForTesting() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		EntriesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_audit_entries_recorded_total",
			Help: "Total number of audit entries recorded, by action",
		}, []string{"action"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_audit_write_failures_total",
			Help: "Total number of audit entries that could not be persisted",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_audit_publish_failures_total",
			Help: "Total number of audit entries that could not be mirrored to Kafka",
		}),
	}
}
