package metrics

import "github.com/prometheus/client_golang/prometheus"

// ActionMetrics holds Prometheus metrics for react and nominate requests.
type ActionMetrics struct {
	Actions            *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	ForcedSkips        prometheus.Counter
}

func NewActionMetrics(reg prometheus.Registerer) *ActionMetrics {
	m := &ActionMetrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of viewer actions, by kind and result.",
		}, []string{"kind", "result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actions_processing_duration_seconds",
			Help:      "Duration of action processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ForcedSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_skips_total",
			Help:      "Rotations marked for skipping by downvotes or operators.",
		}),
	}

	reg.MustRegister(m.Actions, m.ProcessingDuration, m.ForcedSkips)
	return m
}
