// Package gatemetrics exposes Prometheus metrics for the gate.
package gatemetrics

import "github.com/prometheus/client_golang/prometheus"

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "craftgate"
	subsystem = "gate"
)

// Label names for gate metrics.
const (
	labelPhase  = "phase"
	labelReason = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Gate Metrics
// -------------------------------------------------------------------------

// Collector holds all gate Prometheus metrics.
//
// Connection gauges track currently open connections; packet counters
// track volumes by phase; login counters record the outcome of every
// login attempt for alerting on authentication problems.
type Collector struct {
	// ConnectionsAccepted counts connections accepted by the listener.
	ConnectionsAccepted prometheus.Counter

	// ConnectionsOpen tracks the number of currently open connections.
	ConnectionsOpen prometheus.Gauge

	// PacketsReceived counts inbound packets by connection phase.
	PacketsReceived *prometheus.CounterVec

	// PacketsSent counts outbound packets by connection phase.
	PacketsSent *prometheus.CounterVec

	// StatusPings counts served status ping exchanges.
	StatusPings prometheus.Counter

	// LoginsSucceeded counts completed logins (LoginSuccess sent).
	LoginsSucceeded prometheus.Counter

	// LoginsFailed counts login attempts that ended in a fatal error,
	// labeled with the failure reason (verify_token, key_exchange,
	// session_auth).
	LoginsFailed *prometheus.CounterVec

	// ProtocolErrors counts connections dropped on protocol errors,
	// labeled with the phase they died in.
	ProtocolErrors *prometheus.CounterVec
}

// NewCollector creates a Collector with all gate metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics carry the "craftgate_gate_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ConnectionsAccepted,
		c.ConnectionsOpen,
		c.PacketsReceived,
		c.PacketsSent,
		c.StatusPings,
		c.LoginsSucceeded,
		c.LoginsFailed,
		c.ProtocolErrors,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	phaseLabels := []string{labelPhase}

	return &Collector{
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_accepted_total",
			Help:      "Total TCP connections accepted by the listener.",
		}),

		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_open",
			Help:      "Number of currently open connections.",
		}),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total inbound packets by connection phase.",
		}, phaseLabels),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total outbound packets by connection phase.",
		}, phaseLabels),

		StatusPings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "status_pings_total",
			Help:      "Total status ping exchanges served.",
		}),

		LoginsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logins_succeeded_total",
			Help:      "Total logins completed through LoginSuccess.",
		}),

		LoginsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logins_failed_total",
			Help:      "Total login attempts ended by a fatal error.",
		}, []string{labelReason}),

		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "protocol_errors_total",
			Help:      "Total connections dropped on protocol errors by phase.",
		}, phaseLabels),
	}
}

// -------------------------------------------------------------------------
// Connection Lifecycle
// -------------------------------------------------------------------------

// ConnAccepted records a newly accepted connection.
func (c *Collector) ConnAccepted() {
	c.ConnectionsAccepted.Inc()
	c.ConnectionsOpen.Inc()
}

// ConnClosed records a connection ending, for any reason.
func (c *Collector) ConnClosed() {
	c.ConnectionsOpen.Dec()
}

// -------------------------------------------------------------------------
// Packet Counters
// -------------------------------------------------------------------------

// IncPacketsReceived increments the inbound packet counter for a phase.
func (c *Collector) IncPacketsReceived(phase string) {
	c.PacketsReceived.WithLabelValues(phase).Inc()
}

// IncPacketsSent increments the outbound packet counter for a phase.
func (c *Collector) IncPacketsSent(phase string) {
	c.PacketsSent.WithLabelValues(phase).Inc()
}

// -------------------------------------------------------------------------
// Outcomes
// -------------------------------------------------------------------------

// IncStatusPings records a served ping/pong exchange.
func (c *Collector) IncStatusPings() {
	c.StatusPings.Inc()
}

// IncLoginsSucceeded records a completed login.
func (c *Collector) IncLoginsSucceeded() {
	c.LoginsSucceeded.Inc()
}

// IncLoginsFailed records a failed login attempt with its reason.
func (c *Collector) IncLoginsFailed(reason string) {
	c.LoginsFailed.WithLabelValues(reason).Inc()
}

// IncProtocolErrors records a connection dropped on a protocol error in
// the given phase.
func (c *Collector) IncProtocolErrors(phase string) {
	c.ProtocolErrors.WithLabelValues(phase).Inc()
}
