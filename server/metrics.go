package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the supervisor updates per
// association. The core never starts its own HTTP listener for scraping;
// the hosting process registers these against its own registry and exposes
// /metrics itself.
type Metrics struct {
	associationsTotal   *prometheus.CounterVec
	associationDuration prometheus.Histogram
	activeAssociations  prometheus.Gauge
}

// NewMetrics builds and registers the DICOM server instruments with reg.
// Passing prometheus.DefaultRegisterer wires them into the default global
// registry; a nil reg builds unregistered instruments (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		associationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dicom_associations_total",
			Help: "DICOM associations handled, by outcome.",
		}, []string{"result"}),
		associationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dicom_association_duration_seconds",
			Help:    "Wall-clock lifetime of handled DICOM associations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		activeAssociations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dicom_active_associations",
			Help: "Associations currently owned by pool workers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.associationsTotal, m.associationDuration, m.activeAssociations)
	}
	return m
}

func (m *Metrics) associationStarted() {
	if m == nil {
		return
	}
	m.activeAssociations.Inc()
}

func (m *Metrics) associationFinished(start time.Time, result string) {
	if m == nil {
		return
	}
	m.activeAssociations.Dec()
	m.associationsTotal.WithLabelValues(result).Inc()
	m.associationDuration.Observe(time.Since(start).Seconds())
}
