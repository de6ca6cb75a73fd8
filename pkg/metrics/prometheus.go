// Package metrics provides Prometheus metrics for the facequiz service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Visitors
	visitsRecorded  prometheus.Counter
	visitsDuplicate prometheus.Counter
	visitsDropped   prometheus.Counter
	geoLookups      *prometheus.CounterVec

	// Games and leaderboard
	gamesIncremented       prometheus.Counter
	leaderboardSubmissions *prometheus.CounterVec
	leaderboardPruned      prometheus.Counter
	pruneLatency           prometheus.Histogram

	// Storage and cache
	storeLatency  *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Collectors are registered on the
// configured registry (prometheus.DefaultRegisterer unless overridden).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facequiz",
		subsystem:        "api",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.visitsRecorded = m.counter("visits_recorded_total", "Visitor records created")
	m.visitsDuplicate = m.counter("visits_duplicate_total", "Visits from already known addresses")
	m.visitsDropped = m.counter("visits_dropped_total", "Visit events dropped because the queue was full or stopped")
	m.geoLookups = m.counterVec("geo_lookups_total", "Country lookups by outcome", "outcome")

	m.gamesIncremented = m.counter("games_incremented_total", "Game counter increments")
	m.leaderboardSubmissions = m.counterVec("leaderboard_submissions_total",
		"Leaderboard submissions by outcome", "outcome")
	m.leaderboardPruned = m.counter("leaderboard_pruned_total", "Leaderboard entries removed by pruning")
	m.pruneLatency = m.histogram("leaderboard_prune_duration_milliseconds", "Duration of a prune pass")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "operation")
	m.cacheRequests = m.counterVec("cache_requests_total", "Cache lookups by result", "result")

	m.queueSize = m.gauge("queue_size", "Current number of queued visit events")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the visit queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Visit events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Visit events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Failed enqueue attempts")
	m.workerCount = m.gauge("worker_count", "Number of running visit workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time spent recording one visit event")
	m.workerErrors = m.counter("worker_errors_total", "Visit events that failed to record")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time")
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration observes an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordVisitRecorded counts a newly stored visitor.
func RecordVisitRecorded() {
	if globalManager != nil && globalManager.enabled {
		globalManager.visitsRecorded.Inc()
	}
}

// RecordVisitDuplicate counts a visit from a known address.
func RecordVisitDuplicate() {
	if globalManager != nil && globalManager.enabled {
		globalManager.visitsDuplicate.Inc()
	}
}

// RecordVisitDropped counts a visit event that never reached a worker.
func RecordVisitDropped() {
	if globalManager != nil && globalManager.enabled {
		globalManager.visitsDropped.Inc()
	}
}

// RecordGeoLookup counts a country lookup with outcome ok, failed, limited or skipped.
func RecordGeoLookup(outcome string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.geoLookups.WithLabelValues(outcome).Inc()
	}
}

// RecordGameIncremented counts a game counter increment.
func RecordGameIncremented() {
	if globalManager != nil && globalManager.enabled {
		globalManager.gamesIncremented.Inc()
	}
}

// RecordLeaderboardSubmission counts a submission with outcome accepted, conflict or error.
func RecordLeaderboardSubmission(outcome string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.leaderboardSubmissions.WithLabelValues(outcome).Inc()
	}
}

// RecordLeaderboardPruned adds n removed entries.
func RecordLeaderboardPruned(n int) {
	if globalManager != nil && globalManager.enabled && n > 0 {
		globalManager.leaderboardPruned.Add(float64(n))
	}
}

// RecordPruneLatency observes the duration of a prune pass.
func RecordPruneLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.pruneLatency.Observe(latencyMs)
	}
}

// RecordStoreLatency observes the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// RecordCacheRequest counts a cache lookup with result hit, miss or error.
func RecordCacheRequest(result string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.cacheRequests.WithLabelValues(result).Inc()
	}
}

// UpdateQueueSize sets the visit queue backlog.
func UpdateQueueSize(size int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the visit queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an enqueued event.
func RecordQueueEnqueue() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a dequeued event.
func RecordQueueDequeue() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency observes the time spent on one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts an event a worker failed to record.
func RecordWorkerError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
