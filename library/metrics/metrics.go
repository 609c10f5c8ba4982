// Package metrics provides Prometheus metrics for texpad.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Autosave metrics
	autosaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texpad_autosave_total",
			Help: "Total number of autosave persistence calls",
		},
		[]string{"trigger", "status"},
	)

	autosaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "texpad_autosave_duration_seconds",
			Help:    "Autosave persistence call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	autosaveStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "texpad_autosave_stale_total",
			Help: "Total autosave completions discarded as stale",
		},
	)

	// File lifecycle metrics
	lifecycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texpad_file_lifecycle_total",
			Help: "Total file lifecycle operations",
		},
		[]string{"op", "result"},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "texpad_open_sessions",
			Help: "Number of open file sessions",
		},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texpad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texpad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Store metrics
	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "texpad_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texpad_cache_lookups_total",
			Help: "Total project cache lookups",
		},
		[]string{"result"},
	)

	mirrorOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "texpad_mirror_operations_total",
			Help: "Total blob mirror operations",
		},
		[]string{"op", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAutosave records one autosave persistence call.
func RecordAutosave(trigger string, err error, duration time.Duration) {
	autosaveTotal.WithLabelValues(trigger, statusLabel(err)).Inc()
	autosaveDuration.Observe(duration.Seconds())
}

// RecordAutosaveStale records a discarded autosave completion.
func RecordAutosaveStale() {
	autosaveStaleTotal.Inc()
}

// RecordLifecycle records a create, rename or delete outcome.
func RecordLifecycle(op string, err error) {
	lifecycleTotal.WithLabelValues(op, statusLabel(err)).Inc()
}

// SetOpenSessions sets the open session gauge.
func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStoreOp records a store operation duration.
func ObserveStoreOp(backend, op string, duration time.Duration) {
	storeOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordMirrorOp records a blob mirror operation.
func RecordMirrorOp(op string, err error) {
	mirrorOpsTotal.WithLabelValues(op, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
