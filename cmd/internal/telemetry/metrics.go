// Package telemetry exposes the relay's Prometheus collectors.
//
// All methods are safe on a nil *Metrics so components can run without metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "babilado"

type Metrics struct {
	connectionsActive prometheus.Gauge
	handshakes        *prometheus.CounterVec
	sessions          *prometheus.CounterVec
	messagesPersisted prometheus.Counter
	messageFailures   *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections_active",
			Help:      "Live websocket channels held by the connection registry.",
		}),
		handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "handshakes_total",
			Help:      "Websocket handshake attempts by result.",
		}, []string{"result"}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "requests_total",
			Help:      "Session create-or-extend calls by result.",
		}, []string{"result"}),
		messagesPersisted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "persisted_total",
			Help:      "Messages written to the message store.",
		}),
		messageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "send_failures_total",
			Help:      "Failed sends by error kind.",
		}, []string{"kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "notifications_total",
			Help:      "New-message notifications by whether the party had a live channel.",
		}, []string{"result"}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "frames_dropped_total",
			Help:      "Inbound or outbound frames dropped by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connectionsActive.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

func (m *Metrics) Handshake(admitted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if admitted {
		result = "admitted"
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// Session records a create-or-extend outcome: created, extended, denied or error.
func (m *Metrics) Session(result string) {
	if m != nil {
		m.sessions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) MessagePersisted() {
	if m != nil {
		m.messagesPersisted.Inc()
	}
}

func (m *Metrics) MessageFailed(kind string) {
	if m != nil {
		m.messageFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Notified(online bool) {
	if m == nil {
		return
	}
	result := "offline"
	if online {
		result = "online"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// FrameDropped records a dropped frame: malformed, rate_limited or queue_full.
func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}
