package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueMetrics records metadata for invalidation queue processing.
type QueueMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
	pending  *prometheus.GaugeVec
}

// NewQueueMetrics registers the queue worker metrics on the provided registerer.
func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	if reg == nil {
		return &QueueMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invalidation_job_duration_seconds",
		Help:    "Duration of invalidation jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invalidation_job_success",
		Help: "Successfully completed invalidation jobs.",
	}, []string{"queue"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invalidation_job_failure",
		Help: "Invalidation jobs that exhausted their attempts.",
	}, []string{"queue"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invalidation_job_retries",
		Help: "Invalidation job attempts that were rescheduled.",
	}, []string{"queue"})
	pending := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "invalidation_jobs_pending",
		Help: "Invalidation jobs currently waiting to be processed.",
	}, []string{"queue"})
	reg.MustRegister(duration, success, failure, retries, pending)
	return &QueueMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
		pending:  pending,
	}
}

// ObserveDuration records the processing time for a job on the named queue.
func (q *QueueMetrics) ObserveDuration(queue string, duration time.Duration) {
	if q == nil || q.duration == nil {
		return
	}
	q.duration.WithLabelValues(normalizeLabel(queue)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named queue.
func (q *QueueMetrics) IncSuccess(queue string) {
	if q == nil || q.success == nil {
		return
	}
	q.success.WithLabelValues(normalizeLabel(queue)).Inc()
}

// IncFailure increments the permanent failure counter for the named queue.
func (q *QueueMetrics) IncFailure(queue string) {
	if q == nil || q.failure == nil {
		return
	}
	q.failure.WithLabelValues(normalizeLabel(queue)).Inc()
}

// IncRetry increments the retry counter for the named queue.
func (q *QueueMetrics) IncRetry(queue string) {
	if q == nil || q.retries == nil {
		return
	}
	q.retries.WithLabelValues(normalizeLabel(queue)).Inc()
}

// SetPending records the current pending depth for the named queue.
func (q *QueueMetrics) SetPending(queue string, depth int) {
	if q == nil || q.pending == nil {
		return
	}
	q.pending.WithLabelValues(normalizeLabel(queue)).Set(float64(depth))
}

func normalizeLabel(queue string) string {
	if queue == "" {
		return "unknown"
	}
	return queue
}
