package batch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/oralsim/internal/sink"
)

// Metrics are the Prometheus collectors of a batch run. Each Metrics owns
// its registry so that concurrent runs in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	entities *prometheus.CounterVec
	errors   *prometheus.CounterVec
	events   prometheus.Histogram
	duration prometheus.Histogram
	busy     prometheus.Gauge
}

// NewMetrics creates and registers the batch collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oralsim",
			Name:      "entities_total",
			Help:      "Entities simulated, by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oralsim",
			Name:      "entity_errors_total",
			Help:      "Entities routed to the error state, by error code.",
		}, []string{"code"}),
		events: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oralsim",
			Name:      "entity_events",
			Help:      "Events logged per entity.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oralsim",
			Name:      "entity_duration_seconds",
			Help:      "Wall time to simulate one entity.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oralsim",
			Name:      "workers_busy",
			Help:      "Workers currently simulating an entity.",
		}),
	}
	m.registry.MustRegister(m.entities, m.errors, m.events, m.duration, m.busy)
	return m
}

// Registry returns the registry holding the batch collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// observe records a finished entity.
func (m *Metrics) observe(rec sink.Record, seconds float64) {
	outcome := string(rec.DeathType)
	if rec.Failed() {
		outcome = "error"
		code := string(rec.ErrorCode)
		if code == "" {
			code = "UNKNOWN"
		}
		m.errors.WithLabelValues(code).Inc()
	}
	m.entities.WithLabelValues(outcome).Inc()
	m.events.Observe(float64(len(rec.Events)))
	m.duration.Observe(seconds)
}

// WriteTextfile writes the current metric values in the text exposition
// format, for collection by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
