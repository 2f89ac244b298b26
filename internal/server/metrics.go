package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times service operations.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the service collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmfacade",
			Name:      "operations_total",
			Help:      "VM operations by operation, provider and result.",
		}, []string{"operation", "provider", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vmfacade",
			Name:      "operation_duration_seconds",
			Help:      "Latency of VM operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observe(op, provider string, err error, seconds float64) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	if provider == "" {
		provider = "unknown"
	}
	m.operations.WithLabelValues(op, provider, result).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
}
