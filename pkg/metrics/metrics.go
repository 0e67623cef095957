// Package metrics exposes event engine counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "nodevents"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Dispatch
	messages     *prometheus.CounterVec // By class
	decodeErrors *prometheus.CounterVec // By class
	dropped      prometheus.Counter
	payloadBytes prometheus.Histogram

	// Connection
	transportErrors prometheus.Counter
	reconnects      prometheus.Counter
	subscriptions   *prometheus.CounterVec // By result: requested, acked, failed
	state           *prometheus.GaugeVec   // 1 for the current state
	activeFilters   prometheus.Gauge

	// Trace
	traceErrors prometheus.Counter
}

// New creates and registers the engine metrics on a fresh registry that
// also carries the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Total number of recognized inbound messages",
		}, []string{"class"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decode_errors_total",
			Help:      "Total number of payloads that failed to decode",
		}, []string{"class"}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Total number of messages on unrecognized topics",
		}),

		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "payload_bytes",
			Help:      "Inbound payload size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		}),

		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Total number of transport errors",
		}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Total number of connections after the first one",
		}),

		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "subscriptions_total",
			Help:      "Total number of subscribe steps by result",
		}, []string{"result"}),

		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "Current connection state (1 for the active state)",
		}, []string{"state"}),

		activeFilters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "filters",
			Help:      "Number of topic filters in the current session",
		}),

		traceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trace",
			Name:      "write_errors_total",
			Help:      "Total number of trace events that could not be written",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.decodeErrors,
		m.dropped,
		m.payloadBytes,
		m.transportErrors,
		m.reconnects,
		m.subscriptions,
		m.state,
		m.activeFilters,
		m.traceErrors,
	)
	return m
}

// Registry returns the Prometheus registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Message records a recognized message of class with size payload bytes.
func (m *Metrics) Message(class string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(class).Inc()
	m.payloadBytes.Observe(float64(size))
}

// DecodeError records a payload of class that failed to decode.
func (m *Metrics) DecodeError(class string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(class).Inc()
}

// Dropped records a message on an unrecognized topic.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// TransportError records a transport error.
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// Reconnect records a connection after the first one.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// Subscription records a subscribe step: "requested", "acked" or "failed".
func (m *Metrics) Subscription(result string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(result).Inc()
}

// State moves the state gauge from one state to another.
func (m *Metrics) State(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.state.WithLabelValues(from).Set(0)
	}
	m.state.WithLabelValues(to).Set(1)
}

// Filters sets the number of topic filters of the current session.
func (m *Metrics) Filters(n int) {
	if m == nil {
		return
	}
	m.activeFilters.Set(float64(n))
}

// TraceError records a trace event that could not be written.
func (m *Metrics) TraceError() {
	if m == nil {
		return
	}
	m.traceErrors.Inc()
}
