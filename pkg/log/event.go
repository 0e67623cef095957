package log

import (
	"time"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// MaxDataSize is the number of payload bytes kept in a MessageEvent.
const MaxDataSize = 256

// Event represents a trace event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the event session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Broker is the broker URL of the session.
	Broker string `cbor:"6,keyasint,omitempty"`

	// ClientID is the MQTT client id of the session.
	ClientID string `cbor:"7,keyasint,omitempty"`

	// Topic is the message topic or subscription filter.
	Topic string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message      *MessageEvent      `cbor:"10,keyasint,omitempty"` // Dispatch layer
	StateChange  *StateChangeEvent  `cbor:"11,keyasint,omitempty"` // Connection/session state
	Subscription *SubscriptionEvent `cbor:"12,keyasint,omitempty"` // Subscribe requests and results
	Error        *ErrorEventData    `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message from the broker.
	DirectionIn Direction = 0
	// DirectionOut indicates a request to the broker.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the engine captured the event.
type Layer uint8

const (
	// LayerTransport is the broker connection.
	LayerTransport Layer = 0
	// LayerSubscription is the subscription registry.
	LayerSubscription Layer = 1
	// LayerDispatch is topic matching and payload decoding.
	LayerDispatch Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSubscription:
		return "SUBSCRIPTION"
	case LayerDispatch:
		return "DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an inbound message.
	CategoryMessage Category = 0
	// CategorySubscription indicates a subscribe request or result.
	CategorySubscription Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one inbound message at the dispatch layer.
type MessageEvent struct {
	// Class is the topic class the matcher assigned.
	Class topic.Class `cbor:"1,keyasint"`

	// Rule names the matching rule (empty when unrecognized).
	Rule string `cbor:"2,keyasint,omitempty"`

	// Size is the payload size in bytes.
	Size int `cbor:"3,keyasint"`

	// Data is the raw payload (may be truncated for large payloads).
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"5,keyasint,omitempty"`

	// Decoded payload (CBOR-compatible representation).
	Payload any `cbor:"6,keyasint,omitempty"`

	// Dropped is set for unrecognized topics that were not delivered.
	Dropped bool `cbor:"7,keyasint,omitempty"`

	// DecodeError is the decoder failure, if any.
	DecodeError string `cbor:"8,keyasint,omitempty"`
}

// NewMessageEvent returns a MessageEvent carrying at most MaxDataSize bytes
// of data.
func NewMessageEvent(class topic.Class, rule string, data []byte) *MessageEvent {
	m := &MessageEvent{Class: class, Rule: rule, Size: len(data)}
	if len(data) > MaxDataSize {
		m.Data = append([]byte(nil), data[:MaxDataSize]...)
		m.Truncated = true
	} else if len(data) > 0 {
		m.Data = append([]byte(nil), data...)
	}
	return m
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session start or stop.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionEvent captures subscribe requests and broker answers.
type SubscriptionEvent struct {
	// Result of the subscribe step.
	Result SubscriptionResult `cbor:"1,keyasint"`

	// QoS requested for the filter.
	QoS uint8 `cbor:"2,keyasint"`

	// Reconnect is set when the request restores subscriptions after a reconnect.
	Reconnect bool `cbor:"3,keyasint,omitempty"`
}

// SubscriptionResult indicates the subscribe step.
type SubscriptionResult uint8

const (
	// SubscriptionRequested indicates a SUBSCRIBE was sent.
	SubscriptionRequested SubscriptionResult = 0
	// SubscriptionAcked indicates the broker accepted the filter.
	SubscriptionAcked SubscriptionResult = 1
	// SubscriptionFailed indicates the request failed or was refused.
	SubscriptionFailed SubscriptionResult = 2
)

// String returns the subscription result name.
func (r SubscriptionResult) String() string {
	switch r {
	case SubscriptionRequested:
		return "REQUESTED"
	case SubscriptionAcked:
		return "ACKED"
	case SubscriptionFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
