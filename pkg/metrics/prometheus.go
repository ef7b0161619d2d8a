// Package metrics provides Prometheus metrics for the tipster recommendation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBucketsMs = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager manages all Prometheus metrics for the tipster service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Cycle metrics
	cyclesTotal         *prometheus.CounterVec
	cycleDuration       prometheus.Histogram
	profilesBuilt       prometheus.Counter
	profilesDropped     *prometheus.CounterVec
	actorsPerCycle      prometheus.Gauge
	strategiesGenerated prometheus.Gauge

	// Store metrics
	snapshotStrategies prometheus.Gauge
	snapshotLastUnix   prometheus.Gauge
	snapshotVersion    prometheus.Gauge
	storeQueries       *prometheus.CounterVec
	storeQueryLatency  prometheus.Histogram
	decayedReads       prometheus.Counter
	adjustments        prometheus.Counter

	// Collaborator metrics
	collaboratorLatency *prometheus.HistogramVec
	collaboratorErrors  *prometheus.CounterVec

	// Publishing
	publishTotal *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tipster",
		subsystem:        "engine",
		histogramBuckets: latencyBucketsMs,
		customLabels:     make(map[string]string),
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
			Buckets: buckets,
		})
	}
	histogramVec := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
			Buckets: m.histogramBuckets,
		}, labels)
	}

	m.cyclesTotal = counterVec("cycles_total", "Aggregation cycles by outcome (committed, no_update, discarded)", "outcome")
	m.cycleDuration = histogram("cycle_duration_milliseconds", "Wall time of a full aggregation cycle", m.histogramBuckets)
	m.profilesBuilt = counter("profiles_built_total", "Actor profiles that passed validation")
	m.profilesDropped = counterVec("profiles_dropped_total", "Actors dropped from a cycle by reason", "reason")
	m.actorsPerCycle = gauge("actors_last_cycle", "Actors scheduled in the last cycle")
	m.strategiesGenerated = gauge("strategies_last_cycle", "Strategies produced by the last aggregation")

	m.snapshotStrategies = gauge("snapshot_strategies", "Strategies in the live snapshot")
	m.snapshotLastUnix = gauge("snapshot_last_commit_unix", "Unix time of the last snapshot commit")
	m.snapshotVersion = gauge("snapshot_version", "Monotonic version of the live snapshot")
	m.storeQueries = counterVec("store_queries_total", "Store reads by operation", "operation")
	m.storeQueryLatency = histogram("store_query_latency_milliseconds", "Latency of store reads", m.histogramBuckets)
	m.decayedReads = counter("decayed_reads_total", "Recommendations served with time decay applied")
	m.adjustments = counter("context_adjustments_total", "Recommendations re-scored against live conditions")

	m.collaboratorLatency = histogramVec("collaborator_latency_milliseconds", "Latency of external collaborator calls", "collaborator")
	m.collaboratorErrors = counterVec("collaborator_errors_total", "Failed external collaborator calls", "collaborator", "kind")

	m.publishTotal = counterVec("publish_total", "Recommendation messages by publish outcome", "outcome")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = gauge("queue_size", "Jobs waiting in the cycle queue")
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the cycle queue")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (0.0 to 1.0)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Jobs rejected by the queue")

	m.workerActiveCount = gauge("worker_active_count", "Workers running in the pool")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Time to build one actor profile", m.histogramBuckets)
	m.workerErrorRate = counter("worker_errors_total", "Jobs that ended in an error")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Cycle Metrics Functions.

// RecordCycle counts a finished cycle by outcome and observes its duration.
func RecordCycle(outcome string, durationMs float64) {
	globalManager.cyclesTotal.WithLabelValues(outcome).Inc()
	globalManager.cycleDuration.Observe(durationMs)
}

// RecordProfileBuilt increments the built profiles counter.
func RecordProfileBuilt() {
	globalManager.profilesBuilt.Inc()
}

// RecordProfileDropped counts an actor dropped from a cycle.
func RecordProfileDropped(reason string) {
	globalManager.profilesDropped.WithLabelValues(reason).Inc()
}

// UpdateActorsPerCycle sets the number of actors scheduled in the last cycle.
func UpdateActorsPerCycle(n int) {
	globalManager.actorsPerCycle.Set(float64(n))
}

// UpdateStrategiesGenerated sets the number of strategies the last aggregation produced.
func UpdateStrategiesGenerated(n int) {
	globalManager.strategiesGenerated.Set(float64(n))
}

// Store Metrics Functions.

// UpdateSnapshot records a snapshot commit.
func UpdateSnapshot(strategies int, version uint64, committedAt time.Time) {
	globalManager.snapshotStrategies.Set(float64(strategies))
	globalManager.snapshotVersion.Set(float64(version))
	globalManager.snapshotLastUnix.Set(float64(committedAt.Unix()))
}

// RecordStoreQuery counts a store read and observes its latency.
func RecordStoreQuery(operation string, latencyMs float64) {
	globalManager.storeQueries.WithLabelValues(operation).Inc()
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordDecayedReads counts recommendations served with decay applied.
func RecordDecayedReads(n int) {
	globalManager.decayedReads.Add(float64(n))
}

// RecordAdjustments counts context-adjusted recommendations.
func RecordAdjustments(n int) {
	globalManager.adjustments.Add(float64(n))
}

// Collaborator Metrics Functions.

// RecordCollaboratorLatency observes the latency of one collaborator call.
func RecordCollaboratorLatency(collaborator string, latencyMs float64) {
	globalManager.collaboratorLatency.WithLabelValues(collaborator).Observe(latencyMs)
}

// RecordCollaboratorError counts a failed collaborator call.
func RecordCollaboratorError(collaborator, kind string) {
	globalManager.collaboratorErrors.WithLabelValues(collaborator, kind).Inc()
}

// RecordPublish counts a publish attempt by outcome.
func RecordPublish(outcome string) {
	globalManager.publishTotal.WithLabelValues(outcome).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
