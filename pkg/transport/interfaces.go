package transport

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrClosed           = errors.New("transport closed")
	ErrSubscribeTimeout = errors.New("subscribe timeout")
	ErrSubscribeRefused = errors.New("subscription refused by broker")
)

// Kind identifies a transport notification.
type Kind uint8

const (
	// KindConnected is sent after every successful (re)connect.
	KindConnected Kind = iota

	// KindDisconnected is sent when an established connection is lost.
	KindDisconnected

	// KindError reports a connect or subscribe failure.
	KindError

	// KindMessage carries an inbound publish.
	KindMessage

	// KindSubscribed acknowledges one subscription.
	KindSubscribed
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "CONNECTED"
	case KindDisconnected:
		return "DISCONNECTED"
	case KindError:
		return "ERROR"
	case KindMessage:
		return "MESSAGE"
	case KindSubscribed:
		return "SUBSCRIBED"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Notification is a transport event delivered to a Handler.
type Notification struct {
	Kind Kind

	// Topic is the message topic, or the filter of a subscribe result.
	Topic string

	// Payload is the message body. It is owned by the receiver.
	Payload []byte

	// Err is set for KindError and, when known, KindDisconnected.
	Err error

	// Conn numbers the connection a KindConnected starts, or the connection
	// a subscribe result was requested on. Results carrying an earlier Conn
	// than the latest KindConnected are stale.
	Conn uint64
}

// Handler receives transport notifications. It must not block.
type Handler func(Notification)

// Transport is a publish/subscribe client connection.
// Implemented by MQTTClient.
type Transport interface {
	// Connect starts connecting in the background. The result arrives as
	// KindConnected or KindError. An error is returned only when the
	// attempt cannot be started at all.
	Connect() error

	// Subscribe requests a subscription. The broker's answer arrives as
	// KindSubscribed or KindError with Topic set to filter.
	Subscribe(filter string, qos byte) error

	// Close disconnects and stops all notifications.
	Close()
}

// Factory creates a transport that reports to h.
type Factory func(h Handler) (Transport, error)

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*MQTTClient)(nil)
)
