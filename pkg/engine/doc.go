// Package engine runs node event sessions.
//
// An Engine owns one transport connection at a time. Start computes the
// topic filters for a capability mask, connects, and subscribes; the
// transport's own reconnection policy keeps the connection alive and the
// engine re-subscribes every time the transport reports a new connection.
// Every inbound message is classified by topic, decoded, and handed to the
// Sink together with its class.
//
// # State Machine
//
//	Idle --Start--> Connecting --connected--> Connected --> Subscribing
//	Subscribing --all filters acknowledged--> Active
//	Active --disconnected--> Disconnected --connected--> Connected --> Subscribing
//	Connecting --transport error--> Failed
//	Subscribing --subscribe failure--> Failed --retry or reconnect--> Subscribing
//	any --Stop--> Idle
//
// Inbound messages never change the state.
//
// # Concurrency
//
// Transport notifications are only enqueued on the transport's goroutines.
// A single loop goroutine per session consumes them in delivery order, so
// the sink sees one event at a time. Start and Stop are serialized; Stop
// closes the transport and waits for the loop to exit, so no dispatch
// happens after Stop returns. A Sink must therefore not call Stop from
// OnEvent.
//
// Only one session may be active per process. Starting a second engine
// while another one runs fails with ErrSessionActive.
package engine
