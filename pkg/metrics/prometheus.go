// Package metrics provides Prometheus metrics for the thermo ETL service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 5 * time.Second
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// ETL
	rowsRead          prometheus.Counter
	aggregatesWritten prometheus.Counter
	etlRunLatency     prometheus.Histogram
	etlFailures       *prometheus.CounterVec
	filesDeleted      prometheus.Counter
	filesUploaded     prometheus.Counter

	// Watcher
	scanRuns         prometheus.Counter
	scanFilesClaimed prometheus.Counter
	scanFilesSkipped *prometheus.CounterVec

	// Task queue
	tasksEnqueued      *prometheus.CounterVec
	taskEnqueueErrors  *prometheus.CounterVec
	tasksStarted       *prometheus.CounterVec
	tasksCompleted     *prometheus.CounterVec
	tasksDuplicate     prometheus.Counter
	taskLatency        *prometheus.HistogramVec
	queueLength        prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueRequeued      prometheus.Counter
	workerCount        prometheus.Gauge
	workerBusy         prometheus.Gauge
	schedulerTriggered *prometheus.CounterVec

	// Store
	storeQueryLatency  prometheus.Histogram
	storeInsertLatency prometheus.Histogram
	storeRecordsTotal  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "thermo",
		subsystem:        "etl",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval returns the period for refreshing stats-derived gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the global manager's gauge refresh period.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.rowsRead = m.counter("rows_read_total", "Raw CSV rows read by ETL runs")
	m.aggregatesWritten = m.counter("aggregates_written_total", "Aggregate records inserted into the store")
	m.etlRunLatency = m.histogram("run_duration_seconds", "Duration of one ETL run")
	m.etlFailures = m.counterVec("run_failures_total", "ETL runs that ended in failure", "kind")
	m.filesDeleted = m.counter("files_deleted_total", "Source files removed after processing")
	m.filesUploaded = m.counter("files_uploaded_total", "Files accepted by the ingest gateway")

	m.scanRuns = m.counter("scan_runs_total", "Directory scans executed")
	m.scanFilesClaimed = m.counter("scan_files_claimed_total", "Files claimed and enqueued by directory scans")
	m.scanFilesSkipped = m.counterVec("scan_files_skipped_total", "Files a scan could not enqueue", "reason")

	m.tasksEnqueued = m.counterVec("tasks_enqueued_total", "Tasks accepted by the queue", "task")
	m.taskEnqueueErrors = m.counterVec("task_enqueue_errors_total", "Tasks the queue refused", "reason")
	m.tasksStarted = m.counterVec("tasks_started_total", "Tasks picked up by a worker", "task")
	m.tasksCompleted = m.counterVec("tasks_completed_total", "Tasks that reached a terminal state", "task", "state")
	m.tasksDuplicate = m.counter("tasks_duplicate_total", "Deliveries skipped because the task was already handled")
	m.taskLatency = m.histogramVec("task_duration_seconds", "Worker time spent per task", "task")
	m.queueLength = m.gauge("queue_length", "Tasks waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue length for bounded backends")
	m.queueRequeued = m.counter("queue_requeued_total", "In-flight tasks returned to the queue on recovery")
	m.workerCount = m.gauge("worker_count", "Configured worker goroutines")
	m.workerBusy = m.gauge("worker_busy", "Workers currently running a task")
	m.schedulerTriggered = m.counterVec("scheduler_triggered_total", "Scheduled job executions", "job")

	m.storeQueryLatency = m.histogram("store_query_duration_seconds", "Store read latency")
	m.storeInsertLatency = m.histogram("store_insert_duration_seconds", "Store insert latency")
	m.storeRecordsTotal = m.gauge("store_records", "Aggregate records held by the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// ETL.

// RecordRowsRead adds n raw rows read from a file.
func RecordRowsRead(n int) { globalManager.rowsRead.Add(float64(n)) }

// RecordAggregatesWritten adds n inserted aggregate records.
func RecordAggregatesWritten(n int) { globalManager.aggregatesWritten.Add(float64(n)) }

// RecordETLRun observes the duration of one ETL run.
func RecordETLRun(d time.Duration) { globalManager.etlRunLatency.Observe(d.Seconds()) }

// RecordETLFailure counts a failed run by error kind.
func RecordETLFailure(kind string) { globalManager.etlFailures.WithLabelValues(kind).Inc() }

// RecordFileDeleted counts a removed source file.
func RecordFileDeleted() { globalManager.filesDeleted.Inc() }

// RecordFileUploaded counts a file accepted by the gateway.
func RecordFileUploaded() { globalManager.filesUploaded.Inc() }

// Watcher.

// RecordScan counts one directory scan and the files it claimed.
func RecordScan(claimed int) {
	globalManager.scanRuns.Inc()
	globalManager.scanFilesClaimed.Add(float64(claimed))
}

// RecordScanSkip counts a file a scan could not enqueue.
func RecordScanSkip(reason string) { globalManager.scanFilesSkipped.WithLabelValues(reason).Inc() }

// Queue and workers.

// RecordTaskEnqueued counts an accepted task.
func RecordTaskEnqueued(task string) { globalManager.tasksEnqueued.WithLabelValues(task).Inc() }

// RecordTaskEnqueueError counts a refused task.
func RecordTaskEnqueueError(reason string) {
	globalManager.taskEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordTaskStarted counts a task picked up by a worker.
func RecordTaskStarted(task string) { globalManager.tasksStarted.WithLabelValues(task).Inc() }

// RecordTaskCompleted counts a terminal task and observes its duration.
func RecordTaskCompleted(task, state string, d time.Duration) {
	globalManager.tasksCompleted.WithLabelValues(task, state).Inc()
	globalManager.taskLatency.WithLabelValues(task).Observe(d.Seconds())
}

// RecordTaskDuplicate counts a skipped duplicate delivery.
func RecordTaskDuplicate() { globalManager.tasksDuplicate.Inc() }

// UpdateQueueLength sets the number of waiting tasks.
func UpdateQueueLength(n int) { globalManager.queueLength.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordQueueRequeued adds n tasks returned to the queue on recovery.
func RecordQueueRequeued(n int) { globalManager.queueRequeued.Add(float64(n)) }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// WorkerBusy adjusts the busy-worker gauge by delta.
func WorkerBusy(delta int) { globalManager.workerBusy.Add(float64(delta)) }

// RecordSchedulerTriggered counts a scheduled job execution.
func RecordSchedulerTriggered(job string) { globalManager.schedulerTriggered.WithLabelValues(job).Inc() }

// Store.

// RecordStoreQuery observes a store read.
func RecordStoreQuery(d time.Duration) { globalManager.storeQueryLatency.Observe(d.Seconds()) }

// RecordStoreInsert observes a store insert.
func RecordStoreInsert(d time.Duration) { globalManager.storeInsertLatency.Observe(d.Seconds()) }

// UpdateStoreRecords sets the number of stored aggregates.
func UpdateStoreRecords(n int) { globalManager.storeRecordsTotal.Set(float64(n)) }

// HTTP.

// RecordHTTPRequest records one request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, d time.Duration) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(d.Seconds())
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
