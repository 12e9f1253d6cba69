package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netprobe metrics
	namespace = "netprobe"

	// Subsystems
	subsystemRun   = "run"
	subsystemPhase = "phase"
)

// PrometheusMetrics holds the Prometheus collectors for discovery runs.
type PrometheusMetrics struct {
	// Run metrics
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRun         prometheus.Gauge
	devicesReported prometheus.Counter
	devicesFiltered prometheus.Counter

	// Phase metrics
	phaseDuration *prometheus.HistogramVec
	hostsFound    *prometheus.CounterVec
	hostsProbed   *prometheus.CounterVec
	phaseErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates the collectors on a private registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{registry: prometheus.NewRegistry()}

	pm.initRunMetrics()
	pm.initPhaseMetrics()

	pm.registry.MustRegister(
		pm.runsTotal,
		pm.runDuration,
		pm.lastRun,
		pm.devicesReported,
		pm.devicesFiltered,
		pm.phaseDuration,
		pm.hostsFound,
		pm.hostsProbed,
		pm.phaseErrors,
	)
	pm.registry.MustRegister(collectors.NewGoCollector())

	return pm
}

func (pm *PrometheusMetrics) initRunMetrics() {
	pm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "total",
			Help:      "Total number of discovery runs by status",
		},
		[]string{"status"},
	)

	pm.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "duration_seconds",
			Help:      "Duration of discovery runs in seconds",
			Buckets:   []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0},
		},
	)

	pm.lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time of the last completed discovery run",
		},
	)

	pm.devicesReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "devices_reported_total",
			Help:      "Devices kept by the meaningfulness filter",
		},
	)

	pm.devicesFiltered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "devices_filtered_total",
			Help:      "Devices dropped by the meaningfulness filter",
		},
	)
}

func (pm *PrometheusMetrics) initPhaseMetrics() {
	pm.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemPhase,
			Name:      "duration_seconds",
			Help:      "Duration of discovery phases in seconds",
			Buckets:   []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"method"},
	)

	pm.hostsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPhase,
			Name:      "hosts_found_total",
			Help:      "Hosts reported by each discovery phase",
		},
		[]string{"method"},
	)

	pm.hostsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPhase,
			Name:      "hosts_probed_total",
			Help:      "Hosts targeted by each discovery phase",
		},
		[]string{"method"},
	)

	pm.phaseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPhase,
			Name:      "errors_total",
			Help:      "Phase failures by method and error type",
		},
		[]string{"method", "error_type"},
	)
}

// GetRegistry returns the Prometheus registry.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// PhaseCompleted records a finished phase.
func (pm *PrometheusMetrics) PhaseCompleted(method string, duration time.Duration, found int) {
	pm.phaseDuration.WithLabelValues(method).Observe(duration.Seconds())
	pm.hostsFound.WithLabelValues(method).Add(float64(found))
}

// PhaseFailed records a failed phase.
func (pm *PrometheusMetrics) PhaseFailed(method, errorType string) {
	pm.phaseErrors.WithLabelValues(method, errorType).Inc()
}

// HostsProbed records the size of a phase's target list.
func (pm *PrometheusMetrics) HostsProbed(method string, count int) {
	pm.hostsProbed.WithLabelValues(method).Add(float64(count))
}

// DevicesReported records the meaningfulness filter outcome.
func (pm *PrometheusMetrics) DevicesReported(kept, filtered int) {
	pm.devicesReported.Add(float64(kept))
	pm.devicesFiltered.Add(float64(filtered))
}

// RunCompleted records the end of a discovery run.
func (pm *PrometheusMetrics) RunCompleted(status string, duration time.Duration) {
	pm.runsTotal.WithLabelValues(status).Inc()
	pm.runDuration.Observe(duration.Seconds())
	pm.lastRun.SetToCurrentTime()
}

// WriteTextfile writes the registry in the text exposition format to
// path, for pickup by the node_exporter textfile collector.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
