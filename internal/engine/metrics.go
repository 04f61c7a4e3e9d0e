package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "registrar"

// Metrics records engine activity. A nil *Metrics records nothing.
type Metrics struct {
	steps        *prometheus.CounterVec
	pathways     *prometheus.CounterVec
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	resets       *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of steps returned to the caller",
			},
			[]string{"step"},
		),
		pathways: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pathway_resolutions_total",
				Help:      "Total number of pathway resolutions",
			},
			[]string{"pathway"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of remote call attempts by outcome",
			},
			[]string{"call", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of remote call attempts in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"call"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_resets_total",
				Help:      "Total number of orchestration state resets by reason",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.steps, m.pathways, m.calls, m.callDuration, m.resets)
	}
	return m
}

func (m *Metrics) step(name string) {
	if m != nil {
		m.steps.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) pathway(name string) {
	if m != nil {
		m.pathways.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) call(name, outcome string, seconds float64) {
	if m != nil {
		m.calls.WithLabelValues(name, outcome).Inc()
		m.callDuration.WithLabelValues(name).Observe(seconds)
	}
}

func (m *Metrics) reset(reason string) {
	if m != nil {
		m.resets.WithLabelValues(reason).Inc()
	}
}
