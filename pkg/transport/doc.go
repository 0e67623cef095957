// Package transport connects the event engine to a node's MQTT broker.
//
// The engine only sees the Transport interface: Connect, Subscribe and
// Close, plus a Handler that receives every transport notification. The
// MQTT implementation wraps the Eclipse Paho client.
//
// # Notifications
//
//	Connected     connection (re-)established; subscriptions must be redone
//	Disconnected  connection lost; Paho reconnects on its own
//	Subscribed    broker acknowledged one filter (Topic set)
//	Message       inbound publish (Topic and Payload set)
//	Error         connect or subscribe failure (Err set, Topic set for subscribes)
//
// Handlers are called from Paho's goroutines and must not block. The
// engine only enqueues notifications and processes them on its own loop.
//
// # Sessions
//
// The client connects with a clean session and does not resume
// subscriptions, so after every reconnect the broker holds no
// subscriptions for this client until they are sent again.
//
// # TLS
//
// A broker URL with scheme ssl:// is used when TLS is configured.
// NewClientTLSConfig builds the tls.Config from PEM files.
package transport
