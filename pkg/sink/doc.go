// Package sink provides engine.Sink implementations: a console printer,
// a fan-out sink, a buffered channel sink and a NATS forwarder.
package sink
