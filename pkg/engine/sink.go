package engine

// Sink receives session events. OnEvent is called from the engine's loop
// goroutine, one event at a time. It must not call Engine.Stop.
type Sink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// OnEvent calls f(e).
func (f SinkFunc) OnEvent(e Event) { f(e) }

// discard is used when no sink is configured.
type discard struct{}

func (discard) OnEvent(Event) {}
