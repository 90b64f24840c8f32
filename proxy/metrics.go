package proxy

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by a Client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	MalformedFrames  prometheus.Counter
	RequestTimeouts  prometheus.Counter
	RemoteFailures   prometheus.Counter
	PendingRequests  prometheus.Gauge
}

// NewMetrics creates the client collectors and registers them with reg, if reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "messages_sent_total",
			Help:      "Total number of messages written to the proxy",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "messages_received_total",
			Help:      "Total number of messages decoded from inbound frames",
		}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "malformed_frames_total",
			Help:      "Total number of inbound frames dropped because they could not be decoded",
		}),
		RequestTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "request_timeouts_total",
			Help:      "Total number of requests that received no response before their deadline",
		}),
		RemoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "remote_failures_total",
			Help:      "Total number of responses with status failed",
		}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dhplugin",
			Subsystem: "proxy",
			Name:      "pending_requests",
			Help:      "Number of requests waiting for a response",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.MessagesSent,
			m.MessagesReceived,
			m.MalformedFrames,
			m.RequestTimeouts,
			m.RemoteFailures,
			m.PendingRequests,
		)
	}
	return m
}

func (m *Metrics) sent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) received() {
	if m != nil {
		m.MessagesReceived.Inc()
	}
}

func (m *Metrics) malformed() {
	if m != nil {
		m.MalformedFrames.Inc()
	}
}

func (m *Metrics) timedOut() {
	if m != nil {
		m.RequestTimeouts.Inc()
	}
}

func (m *Metrics) remoteFailure() {
	if m != nil {
		m.RemoteFailures.Inc()
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.PendingRequests.Set(float64(n))
	}
}
