package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics holds Prometheus metrics for the persistence queue.
type OutboxMetrics struct {
	Enqueued     *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	Failed       *prometheus.CounterVec
	Depth        prometheus.Gauge
	CircuitState prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	m := &OutboxMetrics{
		Enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "records_enqueued_total",
			Help:      "Records accepted for persistence, by kind.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "records_dropped_total",
			Help:      "Records discarded, by reason.",
		}, []string{"reason"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "write_failures_total",
			Help:      "Records that could not be written after retries, by kind.",
		}, []string{"kind"}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "depth",
			Help:      "Records waiting to be written.",
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "circuit_state",
			Help:      "Sink circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Enqueued, m.Dropped, m.Failed, m.Depth, m.CircuitState)
	return m
}
