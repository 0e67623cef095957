package sink

import "github.com/nodevents/nodevents-go/pkg/engine"

// Multi fans events out to several sinks in order.
type Multi struct {
	sinks []engine.Sink
}

// NewMulti creates a fan-out sink. Nil sinks are skipped.
func NewMulti(sinks ...engine.Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// OnEvent implements engine.Sink.
func (m *Multi) OnEvent(e engine.Event) {
	for _, s := range m.sinks {
		s.OnEvent(e)
	}
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}
