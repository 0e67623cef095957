// Package log provides the structured event trace of nodevents sessions.
//
// This package defines the Logger interface and Event types for capturing
// what an event session did: state changes, subscriptions, every inbound
// message with its classification, dropped topics and errors. It is separate
// from operational logging (slog) - the trace is a complete machine-readable
// record for debugging a node's event stream after the fact.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: trace to console via slog
//	cfg.Trace = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Trace, _ = log.NewFileLogger("/var/log/nodevents/session.nlog")
//
//	// Both: use MultiLogger
//	cfg.Trace = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: connection state and broker errors
//   - Subscription: subscribe requests and acknowledgements
//   - Dispatch: inbound messages, their class, decoded payload or drop
//
// # File Format
//
// Trace files use CBOR encoding with the .nlog extension. The nodevents-log
// CLI tool provides viewing, filtering, and export capabilities.
package log
