package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	packetsReceived *prometheus.CounterVec
	packetsSent     *prometheus.CounterVec
	resyncs         prometheus.Counter
	authAttempts    *prometheus.CounterVec
	sessionErrors   *prometheus.CounterVec
	friends         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ymsg_packets_received_total",
			Help: "Packets dispatched, by service",
		}, []string{"service"}),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ymsg_packets_sent_total",
			Help: "Packets queued for sending, by service",
		}, []string{"service"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymsg_stream_resyncs_total",
			Help: "Times the receive stream was resynchronized after garbage",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ymsg_auth_attempts_total",
			Help: "Auth challenges answered, by scheme",
		}, []string{"scheme"}),
		sessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ymsg_session_errors_total",
			Help: "Session errors reported to the host, by reason",
		}, []string{"reason"}),
		friends: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ymsg_friends",
			Help: "Friends cached in the session",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.packetsReceived, m.packetsSent, m.resyncs, m.authAttempts, m.sessionErrors, m.friends)
	}
	return m
}

func (m *Metrics) RecordPacketReceived(service string) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(service).Inc()
}

func (m *Metrics) RecordPacketSent(service string) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(service).Inc()
}

func (m *Metrics) RecordResync() {
	if m == nil {
		return
	}
	m.resyncs.Inc()
}

func (m *Metrics) RecordAuthAttempt(scheme string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(scheme).Inc()
}

func (m *Metrics) RecordSessionError(reason string) {
	if m == nil {
		return
	}
	m.sessionErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordFriends(n int) {
	if m == nil {
		return
	}
	m.friends.Set(float64(n))
}
