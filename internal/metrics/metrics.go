package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. All recording
// methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed  *prometheus.CounterVec
	detectorFailures *prometheus.CounterVec
	entries          *prometheus.CounterVec
	exits            *prometheus.CounterVec
	alertsFired      *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	streamReopens    *prometheus.CounterVec
	activeStreams    prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_frames_processed_total",
			Help: "Frames handed to the frame processor",
		}, []string{"source_id"}),
		detectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_detector_failures_total",
			Help: "Frames for which the detector was unavailable",
		}, []string{"source_id"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_tripwire_entries_total",
			Help: "Confirmed tripwire entries",
		}, []string{"source_id"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_tripwire_exits_total",
			Help: "Confirmed tripwire exits",
		}, []string{"source_id"}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_alerts_fired_total",
			Help: "Alerts that passed the cooldown gate",
		}, []string{"source_id"}),
		alertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_alerts_suppressed_total",
			Help: "Breaches held back by the cooldown gate",
		}, []string{"source_id"}),
		streamReopens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdflow_stream_reopens_total",
			Help: "Frame source reopen attempts after a read failure",
		}, []string{"source_id"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdflow_active_streams",
			Help: "Source loops currently running",
		}),
	}

	m.registry.MustRegister(
		m.framesProcessed,
		m.detectorFailures,
		m.entries,
		m.exits,
		m.alertsFired,
		m.alertsSuppressed,
		m.streamReopens,
		m.activeStreams,
	)

	return m
}

func (m *Metrics) FrameProcessed(sourceID string) {
	if m == nil {
		return
	}
	m.framesProcessed.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) DetectorFailed(sourceID string) {
	if m == nil {
		return
	}
	m.detectorFailures.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) Crossings(sourceID string, entries, exits int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(sourceID).Add(float64(entries))
	m.exits.WithLabelValues(sourceID).Add(float64(exits))
}

func (m *Metrics) AlertFired(sourceID string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) AlertSuppressed(sourceID string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) StreamReopened(sourceID string) {
	if m == nil {
		return
	}
	m.streamReopens.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) StreamStopped() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
