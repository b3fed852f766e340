package metrics

import "github.com/prometheus/client_golang/prometheus"

// RotationMetrics covers the scheduler and the selection engine.
type RotationMetrics struct {
	Rotations          *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	SelectionFallbacks *prometheus.CounterVec
	SelectionErrors    prometheus.Counter
	Remaining          prometheus.Gauge
}

func NewRotationMetrics(reg prometheus.Registerer) *RotationMetrics {
	m := &RotationMetrics{
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "rotations_total",
			Help:      "Total number of installed rotations, by selection reason.",
		}, []string{"reason"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one scheduler tick in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}),
		SelectionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "selection_fallbacks_total",
			Help:      "Selections that had to relax a constraint, by kind.",
		}, []string{"kind"}),
		SelectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "selection_errors_total",
			Help:      "Rotations that could not be installed.",
		}),
		Remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rotation",
			Name:      "featured_remaining_seconds",
			Help:      "Remaining display time of the featured candidate.",
		}),
	}

	reg.MustRegister(m.Rotations, m.TickDuration, m.SelectionFallbacks, m.SelectionErrors, m.Remaining)
	return m
}
