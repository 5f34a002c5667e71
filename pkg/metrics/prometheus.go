// Package metrics provides Prometheus metrics for the trial stats service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by prediction and regression metrics.
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

// neighborBuckets covers the usual k range; larger k lands in +Inf.
var neighborBuckets = []float64{1, 2, 3, 5, 8, 13, 21} //nolint:gochecknoglobals // read-only bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Analysis
	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	neighborsUsed     prometheus.Histogram
	regressions       *prometheus.CounterVec

	// Ingestion
	runsIngested  prometheus.Counter
	runsDuplicate prometheus.Counter
	runsRejected  *prometheus.CounterVec
	runsStored    prometheus.Gauge

	// Queue
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueUtilization  prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueEnqueueError prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store
	storeQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	websocketClients    prometheus.Gauge

	// Operations
	configReloads        *prometheus.CounterVec
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "trials",
		subsystem:        "stats",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place to declare every series
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Score predictions by outcome"),
		[]string{"outcome"},
	)
	m.predictionLatency = auto.NewHistogram(
		m.histogramOpts("prediction_latency_milliseconds", "Neighbour prediction latency in milliseconds", m.histogramBuckets),
	)
	m.neighborsUsed = auto.NewHistogram(
		m.histogramOpts("prediction_neighbors", "Number of neighbours averaged per prediction", neighborBuckets),
	)
	m.regressions = auto.NewCounterVec(
		m.counterOpts("regressions_total", "Impact regressions by variable and outcome"),
		[]string{"variable", "outcome"},
	)

	m.runsIngested = auto.NewCounter(m.counterOpts("runs_ingested_total", "Runs accepted for storage"))
	m.runsDuplicate = auto.NewCounter(m.counterOpts("runs_duplicate_total", "Run submissions ignored as retries"))
	m.runsRejected = auto.NewCounterVec(
		m.counterOpts("runs_rejected_total", "Run submissions rejected by reason"),
		[]string{"reason"},
	)
	m.runsStored = auto.NewGauge(m.gaugeOpts("runs_stored", "Runs currently held by the store"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of runs waiting in the ingest queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the ingest queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Ingest queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Runs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Runs dequeued by workers"))
	m.queueEnqueueError = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue attempts rejected"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of ingest workers running"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to persist one run in milliseconds", m.histogramBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Runs the workers failed to persist"))

	m.storeQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("store_query_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.websocketClients = auto.NewGauge(m.gaugeOpts("websocket_clients", "Open live prediction connections"))

	m.configReloads = auto.NewCounterVec(
		m.counterOpts("config_reloads_total", "Configuration reloads by outcome"),
		[]string{"outcome"},
	)
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
}

// Enabled reports whether recorders on this manager do anything.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// =============================================================================
// ANALYSIS
// =============================================================================

// RecordPrediction counts a prediction with the given outcome.
func RecordPrediction(outcome string) {
	if globalManager.enabled {
		globalManager.predictions.WithLabelValues(outcome).Inc()
	}
}

// RecordPredictionLatency records prediction latency in milliseconds.
func RecordPredictionLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.predictionLatency.Observe(latencyMs)
	}
}

// RecordNeighborsUsed records how many neighbours a prediction averaged.
func RecordNeighborsUsed(n int) {
	if globalManager.enabled {
		globalManager.neighborsUsed.Observe(float64(n))
	}
}

// RecordRegression counts a regression for variable with the given outcome.
func RecordRegression(variable, outcome string) {
	if globalManager.enabled {
		globalManager.regressions.WithLabelValues(variable, outcome).Inc()
	}
}

// =============================================================================
// INGESTION
// =============================================================================

// RecordRunIngested counts a run accepted for storage.
func RecordRunIngested() {
	if globalManager.enabled {
		globalManager.runsIngested.Inc()
	}
}

// RecordRunDuplicate counts a retried submission.
func RecordRunDuplicate() {
	if globalManager.enabled {
		globalManager.runsDuplicate.Inc()
	}
}

// RecordRunRejected counts a rejected submission by reason.
func RecordRunRejected(reason string) {
	if globalManager.enabled {
		globalManager.runsRejected.WithLabelValues(reason).Inc()
	}
}

// UpdateRunsStored sets the number of stored runs.
func UpdateRunsStored(count int) {
	if globalManager.enabled {
		globalManager.runsStored.Set(float64(count))
	}
}

// =============================================================================
// QUEUE
// =============================================================================

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets queue utilization (0..1).
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueError.Inc()
	}
}

// =============================================================================
// WORKERS
// =============================================================================

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records per-run persistence latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a run a worker failed to persist.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// =============================================================================
// STORE
// =============================================================================

// RecordStoreQueryLatency records a store operation latency in milliseconds.
func RecordStoreQueryLatency(operation string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// =============================================================================
// HTTP
// =============================================================================

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// IncWebsocketClients marks a live prediction connection as opened.
func IncWebsocketClients() {
	if globalManager.enabled {
		globalManager.websocketClients.Inc()
	}
}

// DecWebsocketClients marks a live prediction connection as closed.
func DecWebsocketClients() {
	if globalManager.enabled {
		globalManager.websocketClients.Dec()
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// RecordConfigReload counts a configuration reload by outcome.
func RecordConfigReload(outcome string) {
	if globalManager.enabled {
		globalManager.configReloads.WithLabelValues(outcome).Inc()
	}
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
