package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nodevents/nodevents-go/pkg/decode"
	"github.com/nodevents/nodevents-go/pkg/log"
	"github.com/nodevents/nodevents-go/pkg/metrics"
	"github.com/nodevents/nodevents-go/pkg/registry"
	"github.com/nodevents/nodevents-go/pkg/topic"
	"github.com/nodevents/nodevents-go/pkg/transport"
)

// Engine errors.
var (
	ErrAlreadyRunning = errors.New("event session already running")
	ErrNotRunning     = errors.New("event session not running")
	ErrSessionActive  = errors.New("another event session is active in this process")
	ErrNoTransport    = errors.New("no transport factory configured")
	ErrConnectionLost = errors.New("connection lost")

	// Selection errors, returned by Start.
	ErrEmptyMask         = registry.ErrEmptyMask
	ErrNoFilters         = registry.ErrNoFilters
	ErrMissingIdentifier = registry.ErrMissingIdentifier
)

// Config configures an Engine.
type Config struct {
	// Transport creates the transport of each session. Required.
	Transport transport.Factory

	// Sink receives session events. Nil discards them.
	Sink Sink

	// Trace receives the structured event trace. Nil disables tracing.
	Trace log.Logger

	// Metrics records engine counters. Nil disables metrics.
	Metrics *metrics.Metrics

	// Retry controls resubscription after a subscribe failure.
	Retry RetryConfig

	// Broker and ClientID label trace events.
	Broker   string
	ClientID string
}

// Engine runs at most one event session at a time.
type Engine struct {
	config Config

	// opMu serializes Start and Stop.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	session *session
}

// item is one entry of the session queue.
type item struct {
	n transport.Notification

	// retry marks a resubscribe timer firing for generation gen.
	retry bool
	gen   int
}

// session is the state of one Start..Stop cycle.
type session struct {
	id      string
	reg     *registry.Registry
	matcher *topic.Matcher
	tr      transport.Transport
	queue   *queue[item]
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// Owned by the loop goroutine.
	connected  bool
	connects   int
	conn       uint64
	retry      *backoff
	retryGen   int
	retryTimer *time.Timer
}

// New creates an idle engine.
func New(cfg Config) *Engine {
	if cfg.Sink == nil {
		cfg.Sink = discard{}
	}
	if cfg.Trace == nil {
		cfg.Trace = log.NoopLogger{}
	}
	return &Engine{config: cfg}
}

// Start begins a session for sel. It returns once the connect request is
// issued; readiness is reported to the sink as a KindState event with
// NewState StateActive.
func (e *Engine) Start(sel registry.Selection) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.IsRunning() {
		return ErrAlreadyRunning
	}
	if e.config.Transport == nil {
		return ErrNoTransport
	}

	reg, err := registry.New(sel)
	if err != nil {
		return err
	}
	if !acquireSession() {
		return ErrSessionActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      uuid.NewString(),
		reg:     reg,
		matcher: topic.MatcherFor(sel.Profile),
		queue:   newQueue[item](),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		retry:   newBackoff(e.config.Retry),
	}

	tr, err := e.config.Transport(func(n transport.Notification) {
		s.queue.push(item{n: n})
	})
	if err != nil {
		cancel()
		releaseSession()
		return fmt.Errorf("create transport: %w", err)
	}
	s.tr = tr

	e.mu.Lock()
	e.session = s
	e.state = StateConnecting
	e.mu.Unlock()

	if err := tr.Connect(); err != nil {
		tr.Close()
		s.queue.close()
		cancel()

		e.mu.Lock()
		e.session = nil
		e.state = StateIdle
		e.mu.Unlock()

		releaseSession()
		return fmt.Errorf("connect: %w", err)
	}

	e.config.Metrics.Filters(reg.Len())
	go e.run(s)
	return nil
}

// Stop ends the session. The transport is closed and no event is
// dispatched after Stop returns, except the final transition to StateIdle.
// Stop must not be called from Sink.OnEvent.
func (e *Engine) Stop() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return ErrNotRunning
	}

	s.cancel()
	s.tr.Close()
	s.queue.close()
	<-s.done
	e.stopRetry(s)

	e.mu.Lock()
	old := e.state
	e.state = StateIdle
	e.session = nil
	e.mu.Unlock()

	e.emitState(s, old, StateIdle, "stop")
	e.trace(s, log.Event{
		Layer:       log.LayerTransport,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "RUNNING", NewState: "STOPPED"},
	})
	e.config.Metrics.Filters(0)
	releaseSession()
	return nil
}

// Apply toggles the session the way the console command does: a zero mask
// stops a running session and a non-zero mask starts an idle one. A zero
// mask while idle and a non-zero mask while running are errors.
func (e *Engine) Apply(sel registry.Selection) error {
	running := e.IsRunning()
	switch {
	case sel.Mask.IsZero() && running:
		return e.Stop()
	case !sel.Mask.IsZero() && !running:
		return e.Start(sel)
	case sel.Mask.IsZero():
		return ErrNotRunning
	default:
		return ErrAlreadyRunning
	}
}

// IsRunning reports whether a session is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// State returns the connection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Filters returns the subscriptions of the running session, or nil.
func (e *Engine) Filters() []registry.Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	return e.session.reg.ActiveFilters()
}

// Selection returns the selection of the running session.
func (e *Engine) Selection() (registry.Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return registry.Selection{}, false
	}
	return e.session.reg.Selection(), true
}

// SessionID returns the id of the running session, or "".
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.id
}

func (e *Engine) run(s *session) {
	defer close(s.done)

	e.trace(s, log.Event{
		Layer:       log.LayerTransport,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "STOPPED", NewState: "RUNNING", Reason: "mask " + s.reg.Mask().String()},
	})
	e.emitState(s, StateIdle, StateConnecting, "start")

	for {
		it, ok := s.queue.pop(s.ctx)
		if !ok {
			return
		}
		if it.retry {
			e.handleRetry(s, it.gen)
			continue
		}
		e.handle(s, it.n)
	}
}

func (e *Engine) handle(s *session, n transport.Notification) {
	switch n.Kind {
	case transport.KindConnected:
		s.connected = true
		s.connects++
		s.conn = n.Conn
		if s.connects > 1 {
			e.config.Metrics.Reconnect()
		}
		e.stopRetry(s)
		e.setState(s, StateConnected, "transport connected")

		// Broker-side subscriptions are gone after every (re)connect.
		s.reg.ResetAcks()
		e.subscribe(s, s.reg.OnReconnect(), s.connects > 1)

	case transport.KindDisconnected:
		s.connected = false
		s.reg.ResetAcks()
		e.stopRetry(s)
		err := ErrConnectionLost
		if n.Err != nil {
			err = fmt.Errorf("%w: %w", ErrConnectionLost, n.Err)
		}
		e.transportError(s, err, "disconnect")
		e.setState(s, StateDisconnected, err.Error())

	case transport.KindError:
		if n.Topic != "" {
			if e.stale(s, n) {
				return
			}
			e.subscribeFailed(s, n.Topic, n.Err)
			return
		}
		e.transportError(s, n.Err, "connect")
		if st := e.State(); st == StateConnecting || st == StateDisconnected {
			e.setState(s, StateFailed, errString(n.Err))
		}

	case transport.KindSubscribed:
		if e.stale(s, n) {
			return
		}
		e.subscribed(s, n.Topic)

	case transport.KindMessage:
		e.dispatch(s, n.Topic, n.Payload)
	}
}

// stale reports whether the subscribe result n belongs to a connection that
// is gone. Every filter is requested again after a reconnect, so the
// result is traced and otherwise ignored.
func (e *Engine) stale(s *session, n transport.Notification) bool {
	if s.connected && n.Conn == s.conn {
		return false
	}
	e.trace(s, log.Event{
		Layer:    log.LayerSubscription,
		Category: log.CategoryError,
		Topic:    n.Topic,
		Error:    &log.ErrorEventData{Layer: log.LayerSubscription, Message: "result from a previous connection", Context: "stale"},
	})
	return true
}

// subscribe requests subs and moves to Subscribing.
func (e *Engine) subscribe(s *session, subs []registry.Subscription, reconnect bool) {
	e.setState(s, StateSubscribing, fmt.Sprintf("%d filters", len(subs)))

	for _, sub := range subs {
		e.trace(s, log.Event{
			Direction:    log.DirectionOut,
			Layer:        log.LayerSubscription,
			Category:     log.CategorySubscription,
			Topic:        sub.Filter,
			Subscription: &log.SubscriptionEvent{Result: log.SubscriptionRequested, QoS: sub.QoS, Reconnect: reconnect},
		})
		e.config.Metrics.Subscription("requested")

		if err := s.tr.Subscribe(sub.Filter, sub.QoS); err != nil {
			e.subscribeFailed(s, sub.Filter, err)
			return
		}
	}
}

func (e *Engine) subscribed(s *session, filter string) {
	e.config.Metrics.Subscription("acked")

	done, err := s.reg.Ack(filter)
	if err != nil {
		e.trace(s, log.Event{
			Layer:    log.LayerSubscription,
			Category: log.CategoryError,
			Topic:    filter,
			Error:    &log.ErrorEventData{Layer: log.LayerSubscription, Message: err.Error(), Context: "acknowledge"},
		})
		return
	}

	e.trace(s, log.Event{
		Layer:        log.LayerSubscription,
		Category:     log.CategorySubscription,
		Topic:        filter,
		Subscription: &log.SubscriptionEvent{Result: log.SubscriptionAcked, QoS: s.reg.QoS()},
	})

	if done && e.State() == StateSubscribing {
		s.retry.reset()
		e.setState(s, StateActive, "all filters subscribed")
	}
}

func (e *Engine) subscribeFailed(s *session, filter string, err error) {
	e.config.Metrics.Subscription("failed")
	e.trace(s, log.Event{
		Layer:        log.LayerSubscription,
		Category:     log.CategorySubscription,
		Topic:        filter,
		Subscription: &log.SubscriptionEvent{Result: log.SubscriptionFailed, QoS: s.reg.QoS()},
	})
	e.transportError(s, fmt.Errorf("subscribe %q: %w", filter, err), "subscribe")

	if e.State() != StateSubscribing {
		return
	}
	e.setState(s, StateFailed, "subscribe "+filter+" failed")
	e.scheduleRetry(s)
}

func (e *Engine) scheduleRetry(s *session) {
	if e.config.Retry.Disabled || !s.connected {
		return
	}
	s.retryGen++
	gen := s.retryGen
	q := s.queue
	s.retryTimer = time.AfterFunc(s.retry.next(), func() {
		q.push(item{retry: true, gen: gen})
	})
}

func (e *Engine) stopRetry(s *session) {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.retryGen++
}

func (e *Engine) handleRetry(s *session, gen int) {
	if gen != s.retryGen || !s.connected || e.State() != StateFailed {
		return
	}
	s.retryTimer = nil
	e.subscribe(s, s.reg.Pending(), false)
}

// dispatch classifies, decodes and delivers one message.
func (e *Engine) dispatch(s *session, t string, data []byte) {
	match, ok := s.matcher.Classify(t)
	if !ok {
		e.config.Metrics.Dropped()
		msg := log.NewMessageEvent(topic.ClassUnrecognized, "", data)
		msg.Dropped = true
		e.trace(s, log.Event{
			Layer:    log.LayerDispatch,
			Category: log.CategoryMessage,
			Topic:    t,
			Message:  msg,
		})
		return
	}

	payload, err := decode.Decode(match.Class, t, data)
	e.config.Metrics.Message(match.Class.String(), len(data))

	msg := log.NewMessageEvent(match.Class, match.Rule, data)
	if err != nil {
		e.config.Metrics.DecodeError(match.Class.String())
		msg.DecodeError = err.Error()
	} else if match.Class != topic.ClassRawBytes {
		msg.Payload = payload
	}
	e.trace(s, log.Event{
		Layer:    log.LayerDispatch,
		Category: log.CategoryMessage,
		Topic:    t,
		Message:  msg,
	})

	e.emit(s, Event{
		Kind:    KindMessage,
		Topic:   t,
		Class:   match.Class,
		Rule:    match.Rule,
		Payload: payload,
		Err:     err,
	})
}

func (e *Engine) transportError(s *session, err error, op string) {
	e.config.Metrics.TransportError()
	e.trace(s, log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryError,
		Error:    &log.ErrorEventData{Layer: log.LayerTransport, Message: errString(err), Context: op},
	})
	e.emit(s, Event{Kind: KindTransportError, Err: err})
}

// setState moves the session to state and reports the transition.
func (e *Engine) setState(s *session, state State, reason string) {
	e.mu.Lock()
	if e.session != s || e.state == state {
		e.mu.Unlock()
		return
	}
	old := e.state
	e.state = state
	e.mu.Unlock()

	e.emitState(s, old, state, reason)
}

func (e *Engine) emitState(s *session, old, state State, reason string) {
	e.config.Metrics.State(old.String(), state.String())
	e.trace(s, log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: state.String(),
			Reason:   reason,
		},
	})
	e.emit(s, Event{Kind: KindState, OldState: old, NewState: state})
}

func (e *Engine) emit(s *session, ev Event) {
	ev.Time = time.Now()
	ev.SessionID = s.id
	e.config.Sink.OnEvent(ev)
}

func (e *Engine) trace(s *session, ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = s.id
	ev.Broker = e.config.Broker
	ev.ClientID = e.config.ClientID
	e.config.Trace.Log(ev)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
