package engine

// State represents the connection state of a session.
type State uint8

const (
	// StateIdle indicates no session.
	StateIdle State = iota

	// StateConnecting indicates the first connection attempt is in progress.
	StateConnecting

	// StateConnected indicates the transport is connected and no
	// subscriptions exist yet.
	StateConnected

	// StateSubscribing indicates subscriptions are being (re)established.
	StateSubscribing

	// StateActive indicates every filter is subscribed.
	StateActive

	// StateDisconnected indicates the connection was lost and the transport
	// is reconnecting.
	StateDisconnected

	// StateFailed indicates a connect or subscribe failure.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateActive:
		return "ACTIVE"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
