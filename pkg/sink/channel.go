package sink

import (
	"sync/atomic"

	"github.com/nodevents/nodevents-go/pkg/engine"
)

// DefaultChannelSize is the buffer size used when NewChannel gets size <= 0.
const DefaultChannelSize = 256

// Channel delivers events on a buffered channel. It never blocks the
// engine: events that do not fit are counted and discarded.
type Channel struct {
	ch      chan engine.Event
	dropped atomic.Uint64
}

// NewChannel creates a channel sink with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultChannelSize
	}
	return &Channel{ch: make(chan engine.Event, size)}
}

// OnEvent implements engine.Sink.
func (c *Channel) OnEvent(e engine.Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// C returns the event channel.
func (c *Channel) C() <-chan engine.Event {
	return c.ch
}

// Dropped returns the number of discarded events.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}
