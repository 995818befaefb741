// Package metrics exposes session and streaming counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lippyguard"

// Session outcomes
const (
	OutcomeCompleted   = "completed"
	OutcomeNoInterface = "no_interface"
	OutcomeDeviceOpen  = "device_open"
	OutcomeBusy        = "busy"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesCaptured   prometheus.Counter
	FramesSkipped    prometheus.Counter
	RecordsDropped   prometheus.Counter
	RecordsFlagged   *prometheus.CounterVec
	DetectorFailures *prometheus.CounterVec
	Sessions         *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	Subscribers      prometheus.Gauge
	BatchesDropped   prometheus.Counter
	StoreErrors      prometheus.Counter
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Frames read from the capture device",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Frames without an IP layer",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records discarded by the per-session record limit",
		}),
		RecordsFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_flagged_total",
			Help:      "Records newly flagged, by detector",
		}, []string{"detector"}),
		DetectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Detector passes that failed, by detector",
		}, []string{"detector"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Capture sessions, by outcome",
		}, []string{"outcome"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time of completed capture sessions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected stream subscribers",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_batches_dropped_total",
			Help:      "Session batches dropped for slow subscribers",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed flagged-record inserts",
		}),
	}

	registry.MustRegister(
		m.FramesCaptured,
		m.FramesSkipped,
		m.RecordsDropped,
		m.RecordsFlagged,
		m.DetectorFailures,
		m.Sessions,
		m.SessionDuration,
		m.Subscribers,
		m.BatchesDropped,
		m.StoreErrors,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveSession records a finished session.
func (m *Metrics) ObserveSession(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCompleted {
		m.SessionDuration.Observe(took.Seconds())
	}
}
