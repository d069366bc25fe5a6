package orchestrator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podvault/podvault/internal/store/types"
)

var (
	globalRegistry *prometheus.Registry
	globalMetrics  *Metrics
)

func init() {
	globalRegistry = prometheus.NewRegistry()
	globalMetrics = NewMetrics(globalRegistry)
}

// DefaultMetrics returns the process-wide metrics set.
func DefaultMetrics() *Metrics {
	return globalMetrics
}

// MetricsHandler serves the process-wide registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(globalRegistry, promhttp.HandlerOpts{})
}

type Metrics struct {
	jobsTotal       *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	conflictRetries prometheus.Counter
	pollTimeouts    prometheus.Counter
	jobDuration     prometheus.Histogram
	batchRunning    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podvault_jobs_total",
			Help: "Jobs by terminal state",
		}, []string{"state", "kind"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podvault_batches_total",
			Help: "Batches by terminal state",
		}, []string{"state"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podvault_submit_conflict_retries_total",
			Help: "Submissions retried after a single-flight conflict",
		}),
		pollTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podvault_poll_timeouts_total",
			Help: "Jobs abandoned after the polling wall-clock budget",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "podvault_job_duration_seconds",
			Help:    "Wall time from job start to terminal state",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		batchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "podvault_batch_running",
			Help: "Whether a batch is currently in progress",
		}),
	}

	reg.MustRegister(
		m.jobsTotal,
		m.batchesTotal,
		m.conflictRetries,
		m.pollTimeouts,
		m.jobDuration,
		m.batchRunning,
	)

	return m
}

func (m *Metrics) JobFinished(job *types.Job) {
	m.jobsTotal.WithLabelValues(string(job.State), string(job.Kind)).Inc()
	if !job.StartedAt.IsZero() && !job.TerminalAt.IsZero() {
		m.jobDuration.Observe(job.TerminalAt.Sub(job.StartedAt).Seconds())
	}
}

func (m *Metrics) BatchFinished(batch *types.Batch) {
	m.batchesTotal.WithLabelValues(string(batch.State)).Inc()
	m.batchRunning.Set(0)
}

func (m *Metrics) BatchStarted() {
	m.batchRunning.Set(1)
}

func (m *Metrics) ConflictRetry() {
	m.conflictRetries.Inc()
}

func (m *Metrics) PollTimeout() {
	m.pollTimeouts.Inc()
}
