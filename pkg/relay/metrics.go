package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter
	upstreamDialFailures prometheus.Counter

	// Frame metrics, by direction and variant
	framesReceived  *prometheus.CounterVec
	framesForwarded *prometheus.CounterVec
	framesBlocked   *prometheus.CounterVec
	framesInjected  *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec // by direction
	handlerErrors   *prometheus.CounterVec // by variant

	// Performance metrics
	dispatchDuration *prometheus.HistogramVec
}

// NewMetrics creates the relay metrics on a dedicated registry. A nil
// registry gets a fresh one.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "krelay_active_sessions",
				Help: "Current number of relayed sessions",
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "krelay_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "krelay_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		upstreamDialFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "krelay_upstream_dial_failures_total",
				Help: "Total number of failed upstream connection attempts",
			},
		),
		framesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_frames_received_total",
				Help: "Total number of decoded frames by direction and variant",
			},
			[]string{"direction", "variant"},
		),
		framesForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_frames_forwarded_total",
				Help: "Total number of frames relayed to the peer",
			},
			[]string{"direction", "variant"},
		),
		framesBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_frames_blocked_total",
				Help: "Total number of frames a hook stopped from being relayed",
			},
			[]string{"direction", "variant"},
		),
		framesInjected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_frames_injected_total",
				Help: "Total number of frames sent by hooks",
			},
			[]string{"direction", "variant"},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_decode_errors_total",
				Help: "Total number of frames dropped because they failed to decode",
			},
			[]string{"direction"},
		),
		handlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krelay_handler_errors_total",
				Help: "Total number of hook failures by variant",
			},
			[]string{"variant"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "krelay_dispatch_duration_seconds",
				Help:    "Time taken to run every hook for a frame",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"direction"},
		),
	}
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordActiveSessions updates the active session count
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the session disconnection counter
func (m *Metrics) RecordSessionDisconnected() {
	m.sessionsDisconnected.Inc()
}

func (m *Metrics) RecordDialFailure() {
	m.upstreamDialFailures.Inc()
}

func (m *Metrics) RecordFrameReceived(dir Direction, variant string) {
	m.framesReceived.WithLabelValues(dir.String(), variant).Inc()
}

func (m *Metrics) RecordFrameForwarded(dir Direction, variant string) {
	m.framesForwarded.WithLabelValues(dir.String(), variant).Inc()
}

func (m *Metrics) RecordFrameBlocked(dir Direction, variant string) {
	m.framesBlocked.WithLabelValues(dir.String(), variant).Inc()
}

func (m *Metrics) RecordFrameInjected(dir Direction, variant string) {
	m.framesInjected.WithLabelValues(dir.String(), variant).Inc()
}

func (m *Metrics) RecordDecodeError(dir Direction) {
	m.decodeErrors.WithLabelValues(dir.String()).Inc()
}

// RecordHandlerErrors counts every hook failure carried by err, which may
// be a joined error
func (m *Metrics) RecordHandlerErrors(variant string, err error) {
	if err == nil {
		return
	}
	n := 1
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		n = len(joined.Unwrap())
	}
	m.handlerErrors.WithLabelValues(variant).Add(float64(n))
}

// RecordDispatchDuration records how long the hooks for one frame took
func (m *Metrics) RecordDispatchDuration(dir Direction, d time.Duration) {
	m.dispatchDuration.WithLabelValues(dir.String()).Observe(d.Seconds())
}
