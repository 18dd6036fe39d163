package observability

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels beyond the execution states.
const (
	OutcomeFailed  = "failed"
	StatusSuccess  = "success"
	StatusFailure  = "error"
	metricsNsLabel = "lattice"
)

// Metrics holds the run and node collectors.
type Metrics struct {
	NodeOutcomes  *prometheus.CounterVec
	AgentDuration *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		NodeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNsLabel,
				Name:      "node_outcomes_total",
				Help:      "Resolved nodes by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		AgentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNsLabel,
				Name:      "agent_duration_seconds",
				Help:      "Duration of agent executions.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNsLabel,
				Name:      "runs_total",
				Help:      "Finished runs by status.",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNsLabel,
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.NodeOutcomes, m.AgentDuration, m.Runs, m.RunDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			outcome := string(e.Outcome)
			if e.Err != nil {
				outcome = OutcomeFailed
			}
			kind := string(e.Kind)
			m.NodeOutcomes.WithLabelValues(kind, outcome).Inc()
			if e.Outcome == domain.StateExecuted || e.Err != nil {
				m.AgentDuration.WithLabelValues(kind).Observe(e.Duration.Seconds())
			}
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			status := StatusSuccess
			if e.Err != nil {
				status = StatusFailure
			}
			m.Runs.WithLabelValues(status).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
		},
	}
}
