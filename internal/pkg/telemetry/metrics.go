package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	pipelineOutcomes    *prometheus.CounterVec
	listenerMessages    *prometheus.CounterVec
	pipelineDuration    prometheus.Histogram
	lockAcquireFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pipelineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderworker",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by result and failure reason.",
		}, []string{"result", "reason"}),
		listenerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderworker",
			Name:      "listener_messages_total",
			Help:      "Messages handled by the queue listener, by disposition.",
		}, []string{"disposition"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orderworker",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of one pipeline run.",
			Buckets:   prometheus.DefBuckets,
		}),
		lockAcquireFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderworker",
			Name:      "lock_acquire_failures_total",
			Help:      "Customer locks that could not be acquired within the attempt budget.",
		}),
	}
	reg.MustRegister(m.pipelineOutcomes, m.listenerMessages, m.pipelineDuration, m.lockAcquireFailures)
	return m
}

// ObservePipeline records one finished run. reason is empty on success.
func (m *Metrics) ObservePipeline(reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if reason != "" {
		result = "failure"
	}
	m.pipelineOutcomes.WithLabelValues(result, reason).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

// LockAcquireFailed counts an exhausted lock acquisition.
func (m *Metrics) LockAcquireFailed() {
	if m == nil {
		return
	}
	m.lockAcquireFailures.Inc()
}

// MessageHandled counts a listener disposition such as "processed" or
// "dead_lettered".
func (m *Metrics) MessageHandled(disposition string) {
	if m == nil {
		return
	}
	m.listenerMessages.WithLabelValues(disposition).Inc()
}
