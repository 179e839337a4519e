// Package metrics provides prometheus instrumentation for the job engine
// and object-store backends.
//
// Collector wraps a prometheus.Registry so callers (the engine, each
// backend) record through typed methods rather than touching prometheus
// vectors directly; Handler exposes the registry for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Collector accumulates prometheus metrics for one engine instance.
// All methods are nil-receiver safe so callers that construct an engine
// without metrics enabled don't need to guard every call site.
type Collector struct {
	registry *prometheus.Registry

	jobsInFlight   prometheus.Gauge
	jobsTotal      *prometheus.CounterVec
	bytesTransferred *prometheus.CounterVec
	retries        *prometheus.CounterVec
	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector registered against a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strata",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of jobs currently held by a worker.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "jobs",
			Name:      "total",
			Help:      "Total jobs reaching a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		bytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "jobs",
			Name:      "bytes_transferred_total",
			Help:      "Total bytes moved by completed transfer jobs, by scheme.",
		}, []string{"scheme"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "jobs",
			Name:      "retries_total",
			Help:      "Total retry attempts issued by the engine, by kind.",
		}, []string{"kind"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strata",
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total backend operation calls, by scheme, op, and outcome.",
		}, []string{"scheme", "op", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "strata",
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Backend operation call latency, by scheme and op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme", "op"}),
	}

	reg.MustRegister(c.jobsInFlight, c.jobsTotal, c.bytesTransferred, c.retries, c.backendCalls, c.backendLatency)
	return c
}

// Handler returns an http.Handler exposing the collector's registry in the
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// JobStarted records a job acquiring a worker slot.
func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.jobsInFlight.Inc()
}

// JobFinished records a job reaching a terminal status.
func (c *Collector) JobFinished(kind, status string) {
	if c == nil {
		return
	}
	c.jobsInFlight.Dec()
	c.jobsTotal.WithLabelValues(kind, status).Inc()
}

// BytesTransferred records bytes moved for scheme.
func (c *Collector) BytesTransferred(scheme string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesTransferred.WithLabelValues(scheme).Add(float64(n))
}

// RetryAttempted records a retry attempt for a job kind.
func (c *Collector) RetryAttempted(kind string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(kind).Inc()
}

// BackendCall records a single backend call's outcome and latency.
func (c *Collector) BackendCall(scheme, op, outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.backendCalls.WithLabelValues(scheme, op, outcome).Inc()
	c.backendLatency.WithLabelValues(scheme, op).Observe(seconds)
}
