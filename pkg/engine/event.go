package engine

import (
	"fmt"
	"time"

	"github.com/nodevents/nodevents-go/pkg/decode"
	"github.com/nodevents/nodevents-go/pkg/topic"
)

// EventKind distinguishes sink events.
type EventKind uint8

const (
	// KindMessage carries a classified inbound message: Payload on
	// success, Err (a *decode.DecodeError) on failure.
	KindMessage EventKind = iota

	// KindTransportError carries a transport failure in Err.
	KindTransportError

	// KindState reports a state transition in OldState and NewState.
	KindState
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "MESSAGE"
	case KindTransportError:
		return "TRANSPORT_ERROR"
	case KindState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to the Sink.
type Event struct {
	Kind      EventKind
	Time      time.Time
	SessionID string

	// Message fields.
	Topic   string
	Class   topic.Class
	Rule    string
	Payload decode.Payload

	// Err is the decode or transport error.
	Err error

	// State fields.
	OldState State
	NewState State
}

// String returns a one-line summary.
func (e Event) String() string {
	switch e.Kind {
	case KindMessage:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %v", e.Class, e.Topic, e.Err)
		}
		return fmt.Sprintf("%s %s", e.Class, e.Topic)
	case KindTransportError:
		return fmt.Sprintf("transport error: %v", e.Err)
	case KindState:
		return fmt.Sprintf("state %s -> %s", e.OldState, e.NewState)
	default:
		return "unknown event"
	}
}
