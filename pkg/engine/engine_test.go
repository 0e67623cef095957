package engine

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodevents/nodevents-go/pkg/decode"
	"github.com/nodevents/nodevents-go/pkg/log"
	"github.com/nodevents/nodevents-go/pkg/registry"
	"github.com/nodevents/nodevents-go/pkg/topic"
	"github.com/nodevents/nodevents-go/pkg/transport"
	"github.com/nodevents/nodevents-go/pkg/transport/mocks"
)

const (
	zeroOutputID = "0x00000000000000000000000000000000000000000000000000000000000000000000"
	waitFor      = 2 * time.Second
	tick         = time.Millisecond
)

// fakeTransport acknowledges subscriptions synchronously and lets tests
// drive connection notifications.
type fakeTransport struct {
	mu         sync.Mutex
	handler    transport.Handler
	subs       []registry.Subscription
	closed     bool
	connectErr error

	// refuse holds filters the broker refuses, with the number of refusals left.
	refuse map[string]int

	// conn numbers connections; hold queues subscribe results until release.
	conn uint64
	hold bool
	held []transport.Notification
}

func (f *fakeTransport) factory() transport.Factory {
	return func(h transport.Handler) (transport.Transport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handler = h
		f.subs = nil
		f.closed = false
		return f, nil
	}
}

func (f *fakeTransport) Connect() error { return f.connectErr }

func (f *fakeTransport) Subscribe(filter string, qos byte) error {
	f.mu.Lock()
	f.subs = append(f.subs, registry.Subscription{Filter: filter, QoS: qos})
	refused := f.refuse[filter] > 0
	if refused {
		f.refuse[filter]--
	}
	n := transport.Notification{Kind: transport.KindSubscribed, Topic: filter, Conn: f.conn}
	if refused {
		n.Kind, n.Err = transport.KindError, transport.ErrSubscribeRefused
	}
	if f.hold {
		f.held = append(f.held, n)
		f.mu.Unlock()
		return nil
	}
	h := f.handler
	f.mu.Unlock()

	h(n)
	return nil
}

// release delivers the held subscribe results in request order.
func (f *fakeTransport) release() {
	f.mu.Lock()
	held := f.held
	f.held = nil
	h := f.handler
	f.mu.Unlock()

	for _, n := range held {
		h(n)
	}
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) notify(n transport.Notification) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(n)
}

func (f *fakeTransport) connected() {
	f.mu.Lock()
	f.conn++
	conn := f.conn
	f.mu.Unlock()
	f.notify(transport.Notification{Kind: transport.KindConnected, Conn: conn})
}

func (f *fakeTransport) disconnected() {
	f.notify(transport.Notification{Kind: transport.KindDisconnected, Err: errors.New("eof")})
}

func (f *fakeTransport) message(t, payload string) {
	f.notify(transport.Notification{Kind: transport.KindMessage, Topic: t, Payload: []byte(payload)})
}

func (f *fakeTransport) subscriptions() []registry.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.Subscription(nil), f.subs...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofKind(k EventKind) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) states() []State {
	var out []State
	for _, e := range r.ofKind(KindState) {
		out = append(out, e.NewState)
	}
	return out
}

type traceRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *traceRecorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *traceRecorder) all() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

func newTestEngine(t *testing.T, ft *fakeTransport, cfg Config) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg.Transport = ft.factory()
	cfg.Sink = rec
	e := New(cfg)
	t.Cleanup(func() {
		if e.IsRunning() {
			_ = e.Stop()
		}
	})
	return e, rec
}

func waitState(t *testing.T, e *Engine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == want }, waitFor, tick,
		"state = %s, want %s", e.State(), want)
}

func waitMessages(t *testing.T, rec *recorder, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(rec.ofKind(KindMessage)) >= n }, waitFor, tick)
	return rec.ofKind(KindMessage)
}

func TestEngineMilestoneSession(t *testing.T) {
	ft := &fakeTransport{}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: 0x01}))
	assert.True(t, e.IsRunning())
	assert.True(t, SessionActive())

	ft.connected()
	waitState(t, e, StateActive)

	assert.Equal(t, []registry.Subscription{
		{Filter: "milestone-info/latest", QoS: 1},
		{Filter: "milestone-info/confirmed", QoS: 1},
	}, ft.subscriptions())

	ft.message("milestone-info/latest", `{"index":42,"timestamp":1700000000}`)

	msgs := waitMessages(t, rec, 1)
	require.Len(t, msgs, 1)
	assert.NoError(t, msgs[0].Err)
	assert.Equal(t, topic.ClassMilestone, msgs[0].Class)
	assert.Equal(t, "milestone-latest", msgs[0].Rule)
	assert.Equal(t, &decode.MilestoneSummary{Index: 42, Timestamp: 1700000000}, msgs[0].Payload)
	assert.Equal(t, e.SessionID(), msgs[0].SessionID)

	assert.Equal(t, []State{StateConnecting, StateConnected, StateSubscribing, StateActive}, rec.states())
}

func TestEngineOutputSession(t *testing.T) {
	ft := &fakeTransport{}
	e, rec := newTestEngine(t, ft, Config{})

	sel := registry.Selection{Mask: 0x20, Identifiers: topic.Identifiers{OutputID: zeroOutputID}}
	require.NoError(t, e.Start(sel))
	ft.connected()
	waitState(t, e, StateActive)

	assert.Equal(t, []registry.Subscription{{Filter: "outputs/" + zeroOutputID, QoS: 1}}, ft.subscriptions())

	ft.message("some/other/topic", `{}`)
	ft.message("outputs/"+zeroOutputID, `{
		"metadata": {"blockId": "0xb1", "transactionId": "0xt1", "outputIndex": 0, "isSpent": false, "ledgerIndex": 9},
		"output": {"type": 3, "amount": "1000000", "unlockConditions": [{"type": 0, "address": {"type": 0, "pubKeyHash": "0xaa"}}]}
	}`)

	msgs := waitMessages(t, rec, 1)
	require.Len(t, msgs, 1, "unrecognized topic must not reach the sink")
	require.NoError(t, msgs[0].Err)
	assert.Equal(t, topic.ClassOutputUpdate, msgs[0].Class)

	out, ok := msgs[0].Payload.(*decode.OutputUpdate)
	require.True(t, ok, "payload type %T", msgs[0].Payload)
	assert.Equal(t, "0xt1", out.TransactionID)
	assert.Equal(t, uint64(1000000), out.Amount)
}

func TestEngineMalformedMilestoneRecovery(t *testing.T) {
	ft := &fakeTransport{}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitMilestones}))
	ft.connected()
	waitState(t, e, StateActive)

	ft.message("milestone-info/latest", `{"index":`)
	ft.message("milestone-info/confirmed", `{"index":7,"timestamp":8}`)

	msgs := waitMessages(t, rec, 2)
	require.Len(t, msgs, 2)

	var de *decode.DecodeError
	require.ErrorAs(t, msgs[0].Err, &de)
	assert.Equal(t, "milestone-info/latest", de.Topic)
	assert.Nil(t, msgs[0].Payload)

	require.NoError(t, msgs[1].Err)
	assert.Equal(t, &decode.MilestoneSummary{Index: 7, Timestamp: 8}, msgs[1].Payload)
	assert.Equal(t, StateActive, e.State())
}

func TestEngineResubscribesAfterReconnect(t *testing.T) {
	ft := &fakeTransport{}
	trace := &traceRecorder{}
	e, rec := newTestEngine(t, ft, Config{Trace: trace})

	sel := registry.Selection{Mask: 0xFF, Identifiers: topic.Identifiers{
		EntityID:      "0xe1",
		OutputID:      zeroOutputID,
		TransactionID: "0xt1",
	}}
	require.NoError(t, e.Start(sel))
	ft.connected()
	waitState(t, e, StateActive)
	first := ft.subscriptions()
	require.Len(t, first, 9)

	ft.disconnected()
	waitState(t, e, StateDisconnected)

	errs := rec.ofKind(KindTransportError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, ErrConnectionLost)

	ft.connected()
	require.Eventually(t, func() bool { return len(ft.subscriptions()) == 2*len(first) }, waitFor, tick)
	waitState(t, e, StateActive)

	assert.Equal(t, first, ft.subscriptions()[len(first):])
	assert.Equal(t, first, e.Filters())

	var reconnects int
	for _, ev := range trace.all() {
		if ev.Subscription != nil && ev.Subscription.Result == log.SubscriptionRequested && ev.Subscription.Reconnect {
			reconnects++
		}
	}
	assert.Equal(t, len(first), reconnects)
}

func TestEngineStartErrors(t *testing.T) {
	ft := &fakeTransport{}
	e, _ := newTestEngine(t, ft, Config{})

	tests := []struct {
		name string
		sel  registry.Selection
		want error
	}{
		{"empty mask", registry.Selection{}, ErrEmptyMask},
		{"no filters", registry.Selection{Mask: topic.BitOutput}, ErrNoFilters},
		{"strict missing id", registry.Selection{Mask: topic.BitOutput | topic.BitMilestones, Strict: true}, ErrMissingIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Start(tt.sel)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, e.IsRunning())
			assert.False(t, SessionActive())
		})
	}

	assert.ErrorIs(t, e.Stop(), ErrNotRunning)

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	assert.ErrorIs(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}), ErrAlreadyRunning)
}

func TestEngineWithoutTransport(t *testing.T) {
	e := New(Config{})
	assert.ErrorIs(t, e.Start(registry.Selection{Mask: 1}), ErrNoTransport)
}

func TestEngineSessionGuard(t *testing.T) {
	ft1, ft2 := &fakeTransport{}, &fakeTransport{}
	e1, _ := newTestEngine(t, ft1, Config{})
	e2, _ := newTestEngine(t, ft2, Config{})

	require.NoError(t, e1.Start(registry.Selection{Mask: 1}))
	assert.ErrorIs(t, e2.Start(registry.Selection{Mask: 1}), ErrSessionActive)
	assert.False(t, e2.IsRunning())

	require.NoError(t, e1.Stop())
	require.NoError(t, e2.Start(registry.Selection{Mask: 1}))
	assert.True(t, e2.IsRunning())
}

func TestEngineConnectFailure(t *testing.T) {
	ft := &fakeTransport{connectErr: errors.New("refused")}
	e, _ := newTestEngine(t, ft, Config{})

	err := e.Start(registry.Selection{Mask: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.False(t, e.IsRunning())
	assert.False(t, SessionActive())
	assert.Equal(t, StateIdle, e.State())
	assert.True(t, ft.isClosed())
}

func TestEngineConnectErrorMovesToFailed(t *testing.T) {
	ft := &fakeTransport{}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: 1}))
	ft.notify(transport.Notification{Kind: transport.KindError, Err: errors.New("network unreachable")})
	waitState(t, e, StateFailed)

	errs := rec.ofKind(KindTransportError)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0].Err, "network unreachable")

	// The transport keeps retrying; a later connection recovers the session.
	ft.connected()
	waitState(t, e, StateActive)
}

func TestEngineSubscribeRefusedRetries(t *testing.T) {
	ft := &fakeTransport{refuse: map[string]int{"milestone-info/confirmed": 1}}
	e, rec := newTestEngine(t, ft, Config{Retry: RetryConfig{Initial: 5 * time.Millisecond}})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitMilestones}))
	ft.connected()
	waitState(t, e, StateActive)

	assert.Equal(t, []State{
		StateConnecting, StateConnected, StateSubscribing, StateFailed, StateSubscribing, StateActive,
	}, rec.states())

	// Only the refused filter is requested again.
	assert.Equal(t, []registry.Subscription{
		{Filter: "milestone-info/latest", QoS: 1},
		{Filter: "milestone-info/confirmed", QoS: 1},
		{Filter: "milestone-info/confirmed", QoS: 1},
	}, ft.subscriptions())

	errs := rec.ofKind(KindTransportError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, transport.ErrSubscribeRefused)
}

func TestEngineSubscribeRefusedWithoutRetry(t *testing.T) {
	ft := &fakeTransport{refuse: map[string]int{"blocks": 1}}
	e, _ := newTestEngine(t, ft, Config{Retry: RetryConfig{Disabled: true}})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	ft.connected()
	waitState(t, e, StateFailed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateFailed, e.State())
	assert.Len(t, ft.subscriptions(), 1)

	ft.disconnected()
	ft.connected()
	waitState(t, e, StateActive)
	assert.Len(t, ft.subscriptions(), 2)
}

func TestEngineNoDispatchAfterStop(t *testing.T) {
	ft := &fakeTransport{}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	ft.connected()
	waitState(t, e, StateActive)

	require.NoError(t, e.Stop())
	assert.True(t, ft.isClosed())
	assert.False(t, e.IsRunning())
	assert.False(t, SessionActive())
	assert.Equal(t, StateIdle, e.State())
	assert.Empty(t, e.Filters())
	assert.Empty(t, e.SessionID())

	events := rec.all()
	last := events[len(events)-1]
	assert.Equal(t, KindState, last.Kind)
	assert.Equal(t, StateActive, last.OldState)
	assert.Equal(t, StateIdle, last.NewState)

	ft.message("blocks", "\x01\x02")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.all(), len(events))
}

func TestEngineApply(t *testing.T) {
	ft := &fakeTransport{}
	e, _ := newTestEngine(t, ft, Config{})

	assert.ErrorIs(t, e.Apply(registry.Selection{}), ErrNotRunning)

	require.NoError(t, e.Apply(registry.Selection{Mask: 0x02}))
	assert.True(t, e.IsRunning())
	sel, ok := e.Selection()
	require.True(t, ok)
	assert.Equal(t, topic.Mask(0x02), sel.Mask)

	assert.ErrorIs(t, e.Apply(registry.Selection{Mask: 0x04}), ErrAlreadyRunning)

	require.NoError(t, e.Apply(registry.Selection{}))
	assert.False(t, e.IsRunning())
}

func TestEngineTracesDrops(t *testing.T) {
	ft := &fakeTransport{}
	trace := &traceRecorder{}
	e, _ := newTestEngine(t, ft, Config{Trace: trace, Broker: "node:1883", ClientID: "c1"})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	ft.connected()
	waitState(t, e, StateActive)
	ft.message("unknown/topic", "x")

	require.Eventually(t, func() bool {
		for _, ev := range trace.all() {
			if ev.Message != nil && ev.Message.Dropped {
				return true
			}
		}
		return false
	}, waitFor, tick)

	for _, ev := range trace.all() {
		assert.Equal(t, "node:1883", ev.Broker)
		assert.Equal(t, "c1", ev.ClientID)
		assert.Equal(t, e.SessionID(), ev.SessionID)
	}
}

func TestEngineWithMockTransport(t *testing.T) {
	m := mocks.NewMockTransport(t)
	var handler transport.Handler

	m.EXPECT().Connect().Return(nil).Once()
	m.EXPECT().Subscribe("blocks", byte(0)).RunAndReturn(func(filter string, qos byte) error {
		handler(transport.Notification{Kind: transport.KindSubscribed, Topic: filter})
		return nil
	}).Once()
	m.EXPECT().Close().Return().Once()

	e := New(Config{Transport: func(h transport.Handler) (transport.Transport, error) {
		handler = h
		return m, nil
	}})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries, QoS0: true}))
	handler(transport.Notification{Kind: transport.KindConnected})
	waitState(t, e, StateActive)
	require.NoError(t, e.Stop())
}

func TestEngineSubscribeErrorMovesToFailed(t *testing.T) {
	m := mocks.NewMockTransport(t)
	var handler transport.Handler

	m.EXPECT().Connect().Return(nil)
	m.EXPECT().Subscribe(mock.Anything, mock.Anything).Return(transport.ErrNotConnected).Once()
	m.EXPECT().Close().Return()

	rec := &recorder{}
	e := New(Config{
		Sink:  rec,
		Retry: RetryConfig{Disabled: true},
		Transport: func(h transport.Handler) (transport.Transport, error) {
			handler = h
			return m, nil
		},
	})
	t.Cleanup(func() { _ = e.Stop() })

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitMilestones}))
	handler(transport.Notification{Kind: transport.KindConnected})
	waitState(t, e, StateFailed)

	errs := rec.ofKind(KindTransportError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, transport.ErrNotConnected)
}

func TestEngineUnreachableBrokerFails(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	rec := &recorder{}
	e := New(Config{
		Sink: rec,
		Transport: transport.NewMQTTFactory(transport.MQTTConfig{
			Host:                 "127.0.0.1",
			Port:                 port,
			ClientID:             "nodevents-unreachable",
			ConnectTimeout:       time.Second,
			ConnectRetryInterval: 20 * time.Millisecond,
		}),
	})
	t.Cleanup(func() {
		if e.IsRunning() {
			_ = e.Stop()
		}
	})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	waitState(t, e, StateFailed)
	require.Eventually(t, func() bool { return len(rec.ofKind(KindTransportError)) >= 2 }, 5*time.Second, tick)

	assert.Equal(t, []State{StateConnecting, StateFailed}, rec.states())
	require.NoError(t, e.Stop())
}

func TestEngineIgnoresResultsFromPreviousConnection(t *testing.T) {
	ft := &fakeTransport{hold: true, refuse: map[string]int{"blocks": 1}}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	ft.connected()
	waitState(t, e, StateSubscribing)

	// The refusal for the first request is only delivered after the
	// connection was replaced.
	ft.disconnected()
	waitState(t, e, StateDisconnected)
	ft.connected()
	require.Eventually(t, func() bool { return len(ft.subscriptions()) == 2 }, waitFor, tick)

	ft.release()
	waitState(t, e, StateActive)

	assert.Equal(t, []State{
		StateConnecting, StateConnected, StateSubscribing, StateDisconnected,
		StateConnected, StateSubscribing, StateActive,
	}, rec.states())

	errs := rec.ofKind(KindTransportError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, ErrConnectionLost)
}

func TestEngineIgnoresResultsWhileDisconnected(t *testing.T) {
	ft := &fakeTransport{hold: true}
	e, rec := newTestEngine(t, ft, Config{})

	require.NoError(t, e.Start(registry.Selection{Mask: topic.BitRawEntries}))
	ft.connected()
	waitState(t, e, StateSubscribing)
	ft.disconnected()
	waitState(t, e, StateDisconnected)

	ft.release()
	ft.mu.Lock()
	ft.hold = false
	ft.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateDisconnected, e.State())

	ft.connected()
	waitState(t, e, StateActive)
	assert.Len(t, rec.ofKind(KindTransportError), 1)
}
