// Package metrics provides Prometheus collectors for the transports.
//
// A nil *Metrics is valid and records nothing, so transports call the
// recording methods unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scriptnet"

// Metrics holds the transport collectors registered with one registry.
type Metrics struct {
	connections    *prometheus.GaugeVec
	connects       *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	writes         *prometheus.CounterVec
	queuedBytes    *prometheus.GaugeVec
	readyEvents    *prometheus.CounterVec
	errors         *prometheus.CounterVec
	handshakes     *prometheus.HistogramVec
	verifyFailures *prometheus.CounterVec
	datagrams      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of transports in OPEN state",
		}, []string{"kind"}),

		connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Connect attempts by outcome",
		}, []string{"kind", "result"}),

		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved through transports (plaintext for TLS)",
		}, []string{"kind", "direction"}),

		writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Writes by completion path (inline or queued)",
		}, []string{"kind", "path"}),

		queuedBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "write_queue_bytes",
			Help:      "Bytes waiting in transport write queues",
		}, []string{"kind"}),

		readyEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_events_total",
			Help:      "Write queue drained notifications",
		}, []string{"kind"}),

		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Fatal transport errors by failing operation",
		}, []string{"kind", "op"}),

		handshakes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from socket connect to TLS handshake completion",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),

		verifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_failures_total",
			Help:      "Advisory certificate verification failures by code",
		}, []string{"code"}),

		datagrams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "UDP datagrams by direction",
		}, []string{"direction"}),
	}
}

// Opened records a transport entering OPEN.
func (m *Metrics) Opened(kind string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(kind).Inc()
	m.connects.WithLabelValues(kind, "connected").Inc()
}

// Closed records an OPEN transport leaving OPEN.
func (m *Metrics) Closed(kind string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(kind).Dec()
}

// Failed records a fatal error; op is the failing operation.
func (m *Metrics) Failed(kind, op string, connected bool) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind, op).Inc()
	if !connected {
		m.connects.WithLabelValues(kind, "error").Inc()
	}
}

// BytesIn records received bytes.
func (m *Metrics) BytesIn(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(kind, "in").Add(float64(n))
}

// BytesOut records bytes accepted for sending.
func (m *Metrics) BytesOut(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(kind, "out").Add(float64(n))
}

// Write records a write and whether part of it had to be queued.
func (m *Metrics) Write(kind string, queued bool) {
	if m == nil {
		return
	}
	path := "inline"
	if queued {
		path = "queued"
	}
	m.writes.WithLabelValues(kind, path).Inc()
}

// QueueDelta adjusts the queued byte gauge.
func (m *Metrics) QueueDelta(kind string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.queuedBytes.WithLabelValues(kind).Add(float64(delta))
}

// Ready records a READY notification.
func (m *Metrics) Ready(kind string) {
	if m == nil {
		return
	}
	m.readyEvents.WithLabelValues(kind).Inc()
}

// Handshake records a completed TLS handshake.
func (m *Metrics) Handshake(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(kind).Observe(d.Seconds())
}

// VerifyFailure records an advisory verification failure.
func (m *Metrics) VerifyFailure(code string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(code).Inc()
}

// Datagram records a UDP datagram; direction is "in" or "out".
func (m *Metrics) Datagram(direction string, n int) {
	if m == nil {
		return
	}
	m.datagrams.WithLabelValues(direction).Inc()
	m.bytes.WithLabelValues("udp", direction).Add(float64(n))
}
