package events

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exports engine events as Prometheus metrics. Metrics are
// registered on the registerer handed to NewMetricsSink, so independent
// sinks on separate registries never collide.
type MetricsSink struct {
	attempts    *prometheus.CounterVec
	operations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	backoff     *prometheus.HistogramVec
}

// NewMetricsSink creates a metrics sink and registers its collectors on reg
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	m := &MetricsSink{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resilience_retry_attempts_total",
				Help: "Total retry attempts scheduled, by service",
			},
			[]string{"service"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resilience_operations_total",
				Help: "Completed operations by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resilience_circuit_rejections_total",
				Help: "Calls rejected by an open circuit, by service",
			},
			[]string{"service"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resilience_circuit_transitions_total",
				Help: "Circuit state transitions by service and target state",
			},
			[]string{"service", "to"},
		),
		backoff: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resilience_backoff_delay_seconds",
				Help:    "Backoff delays before retry attempts",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
	}

	reg.MustRegister(m.attempts, m.operations, m.rejections, m.transitions, m.backoff)
	return m
}

// Emit implements Sink
func (m *MetricsSink) Emit(e Event) {
	switch e.Type {
	case AttemptScheduled:
		m.attempts.WithLabelValues(e.Service).Inc()
		m.backoff.WithLabelValues(e.Service).Observe(e.Delay.Seconds())
	case OperationSucceeded:
		m.operations.WithLabelValues(e.Service, "success").Inc()
	case OperationFailed:
		m.operations.WithLabelValues(e.Service, "failure").Inc()
	case OperationRejected:
		m.rejections.WithLabelValues(e.Service).Inc()
	case CircuitOpened, CircuitClosed, CircuitHalfOpened:
		m.transitions.WithLabelValues(e.Service, e.To).Inc()
	}
}
