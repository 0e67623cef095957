// Package registry holds the topic subscriptions of one event session.
//
// A Registry is built once from a Selection (profile, capability mask and
// identifiers) and never changes afterwards. The engine asks it for the
// filters to subscribe on the first connect and again after every
// reconnect; both calls return the same set in the same order.
//
// # Lifecycle
//
// Broker-side subscriptions do NOT survive connection loss when the client
// uses a clean session. The registry therefore also tracks which filters
// the broker acknowledged on the current connection. ResetAcks clears that
// state when the connection drops, and Complete reports when every filter
// has been acknowledged again.
package registry
