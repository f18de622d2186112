// Package telemetry exposes Prometheus metrics for the assessment worker.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRequeued  = "requeued"
)

// Metrics holds all worker Prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry bookkeeping.
type Metrics struct {
	jobsProcessed       *prometheus.CounterVec
	jobDuration         prometheus.Histogram
	gateRejections      prometheus.Counter
	transcriberDuration prometheus.Histogram
	assessorDuration    prometheus.Histogram
	dispatchRejected    *prometheus.CounterVec
	queueDepth          prometheus.Gauge
	activeWorkers       prometheus.Gauge
}

// New registers and returns the worker metrics.
func New() *Metrics {
	return &Metrics{
		jobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_jobs_processed_total",
			Help: "Jobs finished by outcome (completed, failed, requeued)",
		}, []string{"outcome"}),
		jobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_job_duration_seconds",
			Help:    "End-to-end processing time for one job",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		gateRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assessment_gate_rejections_total",
			Help: "Recordings classified as not usable by the quality gate",
		}),
		transcriberDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_transcriber_duration_seconds",
			Help:    "Transcription call latency",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		assessorDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_assessor_duration_seconds",
			Help:    "Assessor call latency",
			Buckets: []float64{1, 5, 15, 30, 60, 120},
		}),
		dispatchRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_dispatch_rejected_total",
			Help: "Dispatch requests rejected by reason (claimed, queue_full)",
		}, []string{"reason"}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "assessment_queue_depth",
			Help: "Jobs waiting in the dispatch queue",
		}),
		activeWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "assessment_active_workers",
			Help: "Workers currently processing a job",
		}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// JobProcessed records a finished job run with its outcome.
func (m *Metrics) JobProcessed(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(outcome).Inc()
	m.jobDuration.Observe(duration.Seconds())
}

// GateRejected records a not-usable verdict.
func (m *Metrics) GateRejected() {
	if m == nil {
		return
	}
	m.gateRejections.Inc()
}

// TranscriberCall records the latency of one transcription call.
func (m *Metrics) TranscriberCall(duration time.Duration) {
	if m == nil {
		return
	}
	m.transcriberDuration.Observe(duration.Seconds())
}

// AssessorCall records the latency of one assessor call.
func (m *Metrics) AssessorCall(duration time.Duration) {
	if m == nil {
		return
	}
	m.assessorDuration.Observe(duration.Seconds())
}

// DispatchRejected records a rejected dispatch request.
func (m *Metrics) DispatchRejected(reason string) {
	if m == nil {
		return
	}
	m.dispatchRejected.WithLabelValues(reason).Inc()
}

// SetQueueDepth updates the dispatch queue depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// WorkerStarted increments the active worker gauge.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// WorkerFinished decrements the active worker gauge.
func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}
