package saga

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage outcomes recorded on the stage counter.
const (
	OutcomeAdvanced = "advanced"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
)

// Metrics counts stage outcomes and times stage execution.
type Metrics struct {
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the saga collectors on reg. A nil reg uses a private
// registry, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "matter_intake",
				Subsystem: "saga",
				Name:      "stage_events_total",
				Help:      "Stage events handled, by stage path and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "matter_intake",
				Subsystem: "saga",
				Name:      "stage_duration_seconds",
				Help:      "Time spent running a stage's work.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(m.stages, m.duration)
	return m
}

func (m *Metrics) outcome(stage Path, outcome string) {
	m.stages.WithLabelValues(string(stage), outcome).Inc()
}

func (m *Metrics) observe(stage Path, started time.Time) {
	m.duration.WithLabelValues(string(stage)).Observe(time.Since(started).Seconds())
}
