package transport

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT defaults.
const (
	// DefaultPort is the plain MQTT port.
	DefaultPort = 1883

	// DefaultTLSPort is the MQTT over TLS port.
	DefaultTLSPort = 8883

	DefaultKeepAlive            = 60 * time.Second
	DefaultConnectTimeout       = 10 * time.Second
	DefaultSubscribeTimeout     = 10 * time.Second
	DefaultMaxReconnectInterval = 2 * time.Minute
	DefaultConnectRetryInterval = 5 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight work, in ms.
	disconnectQuiesce = 250

	// subackFailure is the MQTT 3.1.1 SUBACK failure return code.
	subackFailure = 0x80
)

// MQTTConfig configures an MQTT client.
type MQTTConfig struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string

	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	SubscribeTimeout     time.Duration
	MaxReconnectInterval time.Duration
	ConnectRetryInterval time.Duration

	// TLS enables ssl:// when non-nil.
	TLS *tls.Config

	// Logger receives operational messages. Nil uses slog.Default().
	Logger *slog.Logger
}

func (c *MQTTConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
		if c.TLS != nil {
			c.Port = DefaultTLSPort
		}
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
	if c.ConnectRetryInterval <= 0 {
		c.ConnectRetryInterval = DefaultConnectRetryInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrokerURL returns the Paho broker URL, e.g. "tcp://node:1883".
func (c MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.TLS != nil {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MQTTClient is a Transport backed by Paho.
type MQTTClient struct {
	config  MQTTConfig
	handler Handler
	client  mqtt.Client

	closed atomic.Bool
	conn   atomic.Uint64
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMQTTClient creates a client that reports to h. It does not connect.
func NewMQTTClient(cfg MQTTConfig, h Handler) (*MQTTClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mqtt: host is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("mqtt: client id is required")
	}
	if h == nil {
		return nil, fmt.Errorf("mqtt: handler is required")
	}
	cfg.applyDefaults()

	c := &MQTTClient{config: cfg, handler: h, done: make(chan struct{})}
	c.client = mqtt.NewClient(c.clientOptions())
	return c, nil
}

// NewMQTTFactory returns a Factory creating MQTT clients from cfg.
func NewMQTTFactory(cfg MQTTConfig) Factory {
	return func(h Handler) (Transport, error) {
		return NewMQTTClient(cfg, h)
	}
}

func (c *MQTTClient) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.config.BrokerURL()).
		SetClientID(c.config.ClientID).
		SetUsername(c.config.Username).
		SetPassword(c.config.Password).
		SetKeepAlive(c.config.KeepAlive).
		SetConnectTimeout(c.config.ConnectTimeout).
		SetMaxReconnectInterval(c.config.MaxReconnectInterval).
		SetCleanSession(true).
		SetResumeSubs(false).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetDefaultPublishHandler(c.onMessage).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	if c.config.TLS != nil {
		opts.SetTLSConfig(c.config.TLS)
	}
	return opts
}

func (c *MQTTClient) notify(n Notification) {
	if c.closed.Load() {
		return
	}
	c.handler(n)
}

func (c *MQTTClient) onConnect(mqtt.Client) {
	c.config.Logger.Debug("mqtt connected", "broker", c.config.BrokerURL())
	c.notify(Notification{Kind: KindConnected, Conn: c.conn.Add(1)})
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.config.Logger.Debug("mqtt connection lost", "error", err)
	c.notify(Notification{Kind: KindDisconnected, Err: err})
}

func (c *MQTTClient) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.config.Logger.Debug("mqtt reconnecting", "broker", c.config.BrokerURL())
}

func (c *MQTTClient) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	c.notify(Notification{Kind: KindMessage, Topic: msg.Topic(), Payload: payload})
}

// Connect implements Transport. The first connect is retried every
// ConnectRetryInterval until it succeeds or Close is called; each failed
// attempt is reported as KindError. Paho's auto-reconnect takes over once
// the first connect succeeded.
func (c *MQTTClient) Connect() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.wg.Add(1)
	go c.connectLoop()
	return nil
}

func (c *MQTTClient) connectLoop() {
	defer c.wg.Done()
	for {
		token := c.client.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			if c.closed.Load() {
				c.client.Disconnect(0)
			}
			return
		}

		c.config.Logger.Debug("mqtt connect failed", "broker", c.config.BrokerURL(), "error", err)
		c.notify(Notification{Kind: KindError, Err: fmt.Errorf("connect %s: %w", c.config.BrokerURL(), err)})

		select {
		case <-c.done:
			return
		case <-time.After(c.config.ConnectRetryInterval):
		}
	}
}

// Subscribe implements Transport.
func (c *MQTTClient) Subscribe(filter string, qos byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	conn := c.conn.Load()
	token := c.client.Subscribe(filter, qos, nil)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.waitSubscribe(filter, token); err != nil {
			c.notify(Notification{Kind: KindError, Topic: filter, Err: err, Conn: conn})
			return
		}
		c.notify(Notification{Kind: KindSubscribed, Topic: filter, Conn: conn})
	}()
	return nil
}

func (c *MQTTClient) waitSubscribe(filter string, token mqtt.Token) error {
	if !token.WaitTimeout(c.config.SubscribeTimeout) {
		return fmt.Errorf("subscribe %q: %w", filter, ErrSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %q: %w", filter, err)
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if code, ok := st.Result()[filter]; ok && code == subackFailure {
			return fmt.Errorf("subscribe %q: %w", filter, ErrSubscribeRefused)
		}
	}
	return nil
}

// Close implements Transport. Notifications raised after Close are dropped.
func (c *MQTTClient) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.client.Disconnect(disconnectQuiesce)
	c.wg.Wait()
}

// IsConnected reports whether the connection is currently up.
func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}
