// Package metrics provides Prometheus metrics for the stride activity tracker.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the stride service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Signal path
	samplesProcessed *prometheus.CounterVec
	samplesRejected  *prometheus.CounterVec
	jerkMagnitude    prometheus.Histogram
	stepsDetected    *prometheus.CounterVec
	stepsCapped      prometheus.Counter

	// Session
	clockTicks         prometheus.Counter
	milestones         prometheus.Counter
	transitions        *prometheus.CounterVec
	sessionState       *prometheus.GaugeVec
	heartRate          prometheus.Gauge
	sessionSteps       prometheus.Gauge
	sensorUnavailable  prometheus.Counter
	notificationsTotal *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	batchesDuplicate   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

var runtimeOnce sync.Once //nolint:gochecknoglobals // guards runtime collector registration

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stride",
		subsystem:        "tracker",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
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

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.samplesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("samples_processed_total"),
		Help: "Acceleration samples run through the step detector",
	}, []string{"outcome"})

	m.samplesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("samples_rejected_total"),
		Help: "Samples dropped or repaired before detection, by reason",
	}, []string{"reason"})

	m.jerkMagnitude = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("jerk_magnitude"),
		Help:    "Distribution of frame-to-frame acceleration change magnitudes",
		Buckets: []float64{0.5, 1, 2, 5, 8, 10, 12, 15, 20, 30, 50},
	})

	m.stepsDetected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("step_events_total"),
		Help: "Step events applied to the session, by source",
	}, []string{"source"})

	m.stepsCapped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("step_events_capped_total"),
		Help: "Step events absorbed after the daily goal was reached",
	})

	m.clockTicks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("clock_ticks_total"),
		Help: "Session clock ticks applied while tracking",
	})

	m.milestones = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("milestones_total"),
		Help: "Step milestones announced",
	})

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("transitions_total"),
		Help: "Session state transitions by kind",
	}, []string{"kind"})

	m.sessionState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("session_state"),
		Help: "1 for the current session state, 0 otherwise",
	}, []string{"state"})

	m.heartRate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("heart_rate_bpm"),
		Help: "Latest synthesized heart rate",
	})

	m.sessionSteps = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("session_steps"),
		Help: "Steps counted in the current session",
	})

	m.sensorUnavailable = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sensor_unavailable_total"),
		Help: "Fallbacks to the simulation source",
	})

	m.notificationsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("notifications_total"),
		Help: "Announcement deliveries by sink and outcome",
	}, []string{"sink", "outcome"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_size"),
		Help: "Current number of samples waiting in the input queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_capacity"),
		Help: "Maximum input queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_utilization_ratio"),
		Help: "Input queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_enqueue_total"),
		Help: "Total number of samples enqueued",
	})

	m.queueDequeue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_dequeue_total"),
		Help: "Total number of samples dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_enqueue_errors_total"),
		Help: "Total number of rejected enqueues",
	})

	m.batchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("sample_batches_duplicate_total"),
		Help: "Sample batches acknowledged as retries",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_component_total"),
		Help: "Total number of errors by component",
	}, []string{"component", "error_type"})
}

// RecordSampleProcessed counts a sample that reached the detector; stepped reports whether it produced a step.
func RecordSampleProcessed(stepped bool) {
	outcome := "quiet"
	if stepped {
		outcome = "step"
	}
	globalManager.samplesProcessed.WithLabelValues(outcome).Inc()
}

// RecordSampleRejected counts a sample that was dropped or repaired.
func RecordSampleRejected(reason string) {
	globalManager.samplesRejected.WithLabelValues(reason).Inc()
}

// RecordJerkMagnitude observes a differencer output.
func RecordJerkMagnitude(magnitude float64) {
	globalManager.jerkMagnitude.Observe(magnitude)
}

// RecordStepEvent counts an applied step event by source ("sensor", "simulated", "direct").
func RecordStepEvent(source string) {
	globalManager.stepsDetected.WithLabelValues(source).Inc()
}

// RecordStepCapped counts a step event absorbed at the daily goal.
func RecordStepCapped() {
	globalManager.stepsCapped.Inc()
}

// RecordClockTick counts an applied clock tick.
func RecordClockTick() {
	globalManager.clockTicks.Inc()
}

// RecordMilestone counts an announced milestone.
func RecordMilestone() {
	globalManager.milestones.Inc()
}

// RecordTransition counts a state transition.
func RecordTransition(kind string) {
	globalManager.transitions.WithLabelValues(kind).Inc()
}

// UpdateSessionState flips the state gauge to current.
func UpdateSessionState(current string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		globalManager.sessionState.WithLabelValues(s).Set(v)
	}
}

// UpdateHeartRate sets the heart rate gauge.
func UpdateHeartRate(bpm uint32) {
	globalManager.heartRate.Set(float64(bpm))
}

// UpdateSessionSteps sets the session step gauge.
func UpdateSessionSteps(steps uint64) {
	globalManager.sessionSteps.Set(float64(steps))
}

// RecordSensorUnavailable counts a fallback to simulation.
func RecordSensorUnavailable() {
	globalManager.sensorUnavailable.Inc()
}

// RecordNotification counts a notifier delivery outcome.
func RecordNotification(sink, outcome string) {
	globalManager.notificationsTotal.WithLabelValues(sink, outcome).Inc()
}

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization updates the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordBatchDuplicate counts a retried sample batch.
func RecordBatchDuplicate() {
	globalManager.batchesDuplicate.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RegisterRuntimeCollectors adds Go runtime and process metrics to the
// custom registry. Repeated calls are ignored.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
