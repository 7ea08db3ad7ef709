package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the multisig engine.
type Metrics struct {
	// Operations by name and result kind
	Operations *prometheus.CounterVec

	// Operation latency by name
	OperationLatency *prometheus.HistogramVec

	// Actions dispatched by executed proposals
	DispatchedActions prometheus.Counter
}

// New creates a Metrics instance registered with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultgate_operations_total",
			Help: "Total engine operations by name and result",
		}, []string{"op", "result"}), // result: "ok" or the error kind

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaultgate_operation_duration_seconds",
			Help:    "Duration of engine operations including commit",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),

		DispatchedActions: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultgate_dispatched_actions_total",
			Help: "Total actions dispatched by executed proposals",
		}),
	}
}

// ObserveOperation records one operation. An empty kind means it committed.
func (m *Metrics) ObserveOperation(op, kind string, d time.Duration) {
	if m == nil {
		return
	}

	result := kind
	if result == "" {
		result = "ok"
	}

	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
}

// AddDispatchedActions records n dispatched actions.
func (m *Metrics) AddDispatchedActions(n int) {
	if m != nil && n > 0 {
		m.DispatchedActions.Add(float64(n))
	}
}
