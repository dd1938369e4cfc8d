package observability

import (
	"context"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "safetylayers"

// Probe result label values.
const (
	ProbeAgreed    = "agreed"
	ProbeDisagreed = "disagreed"
	ProbeNoOp      = "noop"
)

// Metrics holds the Prometheus collectors fed by decision hooks.
type Metrics struct {
	decisions         *prometheus.CounterVec
	probes            *prometheus.CounterVec
	disagreementLayer prometheus.Histogram
	duration          prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of decisions by outcome",
			},
			[]string{"outcome"},
		),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Total number of layer probes by result",
			},
			[]string{"result"},
		),
		disagreementLayer: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "disagreement_layer",
				Help:      "Shallowest layer whose probe changed the decision",
				Buckets:   prometheus.LinearBuckets(1, 1, 8),
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Duration of decisions including every layer probe",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.probes, m.disagreementLayer, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DisagreementLayer exposes the disagreement depth histogram.
func (m *Metrics) DisagreementLayer() prometheus.Histogram {
	return m.disagreementLayer
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnProbe: func(_ context.Context, e *domain.ProbeEvent) {
			switch {
			case e.NoOp:
				m.probes.WithLabelValues(ProbeNoOp).Inc()
			case e.Agreed:
				m.probes.WithLabelValues(ProbeAgreed).Inc()
			default:
				m.probes.WithLabelValues(ProbeDisagreed).Inc()
			}
		},
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			m.decisions.WithLabelValues(e.Outcome.String()).Inc()
			if e.DisagreementLayer > 0 {
				m.disagreementLayer.Observe(float64(e.DisagreementLayer))
			}
			m.duration.Observe(e.Duration.Seconds())
		},
	}
}
