package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceElection = "election"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// MetricsCollector observes every election operation.
type MetricsCollector interface {
	OperationCompleted(operation, outcome string, duration time.Duration)
}

// PrometheusCollector exports operation counts and latencies.
type PrometheusCollector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the election metrics on registerer.
func NewPrometheusCollector(registerer prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(registerer)
	return &PrometheusCollector{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceElection,
			Name:      "operations_total",
			Help:      "number of election operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceElection,
			Name:      "operation_duration_seconds",
			Help:      "time spent executing an election operation",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
	}
}

func (c *PrometheusCollector) OperationCompleted(operation, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// NoopCollector discards all observations.
type NoopCollector struct{}

var _ MetricsCollector = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) OperationCompleted(string, string, time.Duration) {}
