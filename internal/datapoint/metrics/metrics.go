// Package metrics exposes Prometheus metrics for data ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the data point pipeline.
type Metrics struct {
	Ingested *prometheus.CounterVec
	Alerts   *prometheus.CounterVec
	Rejected prometheus.Counter
}

// New creates and registers all data point metrics.
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
		Ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_data_points_ingested_total",
			Help: "Total number of data points ingested, by type",
		}, []string{"type"}),
		Alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trialgate_data_point_alerts_total",
			Help: "Total number of data points classified as alerts, by severity",
		}, []string{"severity"}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "trialgate_data_points_rejected_total",
			Help: "Total number of data points rejected at ingestion",
		}),
	}
}
