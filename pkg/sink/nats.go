package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nodevents/nodevents-go/pkg/decode"
	"github.com/nodevents/nodevents-go/pkg/engine"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "nodevents"

// ErrNoNATSURL is returned by DialNATS without a server URL.
var ErrNoNATSURL = errors.New("no NATS url")

// Publisher publishes a message on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Record is the JSON document forwarded for each event.
type Record struct {
	Session string    `json:"session"`
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`

	Topic   string `json:"topic,omitempty"`
	Class   string `json:"class,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`

	OldState string `json:"oldState,omitempty"`
	NewState string `json:"newState,omitempty"`
}

// NewRecord converts an event. Raw payloads are carried as hex.
func NewRecord(e engine.Event) Record {
	r := Record{
		Session: e.SessionID,
		Time:    e.Time,
		Kind:    strings.ToLower(e.Kind.String()),
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}

	switch e.Kind {
	case engine.KindMessage:
		r.Topic = e.Topic
		r.Class = strings.ToLower(e.Class.String())
		r.Rule = e.Rule
		if raw, ok := e.Payload.(decode.RawBytes); ok {
			r.Payload = raw.Hex()
		} else if e.Payload != nil {
			r.Payload = e.Payload
		}
	case engine.KindState:
		r.OldState = e.OldState.String()
		r.NewState = e.NewState.String()
	}
	return r
}

// Forwarder publishes events as JSON. Messages go to
// <prefix>.<class>, state changes to <prefix>.state and transport errors
// to <prefix>.error.
type Forwarder struct {
	pub    Publisher
	prefix string
	logger *slog.Logger

	// conn is set when the forwarder owns the connection.
	conn *nats.Conn
}

// NewForwarder creates a forwarder on an existing publisher.
func NewForwarder(pub Publisher, prefix string, logger *slog.Logger) *Forwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// DialNATS connects to url and returns a forwarder owning the connection.
func DialNATS(url, prefix, name string, logger *slog.Logger) (*Forwarder, error) {
	if url == "" {
		return nil, ErrNoNATSURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	f := NewForwarder(conn, prefix, logger)
	f.conn = conn
	return f, nil
}

// Subject returns the subject an event is published on.
func (f *Forwarder) Subject(e engine.Event) string {
	switch e.Kind {
	case engine.KindMessage:
		return f.prefix + "." + strings.ToLower(e.Class.String())
	case engine.KindState:
		return f.prefix + ".state"
	default:
		return f.prefix + ".error"
	}
}

// OnEvent implements engine.Sink. Publish failures are logged and the
// event is discarded.
func (f *Forwarder) OnEvent(e engine.Event) {
	data, err := json.Marshal(NewRecord(e))
	if err != nil {
		f.logger.Warn("OnEvent: encode failed", "kind", e.Kind, "error", err)
		return
	}
	if err := f.pub.Publish(f.Subject(e), data); err != nil {
		f.logger.Warn("OnEvent: publish failed", "subject", f.Subject(e), "error", err)
	}
}

// Close flushes and closes the connection if the forwarder owns it.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}
