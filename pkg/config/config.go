// Package config loads the nodevents YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nodevents/nodevents-go/pkg/registry"
	"github.com/nodevents/nodevents-go/pkg/topic"
	"github.com/nodevents/nodevents-go/pkg/transport"
)

// Defaults.
const (
	DefaultHost        = "localhost"
	DefaultMetricsPath = "/metrics"
	DefaultLogLevel    = "info"
	ClientIDPrefix     = "nodevents-"
)

// ErrInvalid wraps every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration file.
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Broker   Broker  `yaml:"broker"`
	Events   Events  `yaml:"events"`
	Trace    Trace   `yaml:"trace"`
	Metrics  Metrics `yaml:"metrics"`
	Forward  Forward `yaml:"forward"`
}

// Broker configures the MQTT connection.
type Broker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      TLS    `yaml:"tls"`

	KeepAlive            time.Duration `yaml:"keep_alive"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	SubscribeTimeout     time.Duration `yaml:"subscribe_timeout"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`

	// Discover looks the broker up with mDNS when Host is empty.
	Discover bool `yaml:"discover"`
}

// TLS configures an MQTT over TLS connection.
type TLS struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Events selects the event groups to subscribe to.
type Events struct {
	Profile string `yaml:"profile"`

	// Mask is the capability mask as one or two hex digits. Empty or "0"
	// starts no session.
	Mask string `yaml:"mask"`

	QoS               int         `yaml:"qos"`
	StrictIdentifiers bool        `yaml:"strict_identifiers"`
	Identifiers       Identifiers `yaml:"identifiers"`
}

// Identifiers are the ids of parameterized event groups.
type Identifiers struct {
	EntityID       string `yaml:"entity_id"`
	OutputID       string `yaml:"output_id"`
	TransactionID  string `yaml:"transaction_id"`
	Index          string `yaml:"index"`
	Bech32Address  string `yaml:"bech32_address"`
	Ed25519Address string `yaml:"ed25519_address"`
}

// Trace configures the event trace file.
type Trace struct {
	// Path of the trace file. Empty disables the trace.
	Path string `yaml:"path"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Listen address, e.g. ":9100". Empty disables the endpoint.
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Forward configures NATS forwarding.
type Forward struct {
	// NATSURL enables forwarding when set.
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used for absent fields.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Broker: Broker{
			Host:                 DefaultHost,
			KeepAlive:            transport.DefaultKeepAlive,
			ConnectTimeout:       transport.DefaultConnectTimeout,
			SubscribeTimeout:     transport.DefaultSubscribeTimeout,
			MaxReconnectInterval: transport.DefaultMaxReconnectInterval,
		},
		Events: Events{
			Profile: topic.ProfileStardust.String(),
			QoS:     int(registry.DefaultQoS),
		},
		Metrics: Metrics{Path: DefaultMetricsPath},
	}
}

// Load reads the configuration file at path. The result is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration on top of Default. Unknown keys are
// rejected. The result is not validated.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Finalize fills generated values. Call it after flags were applied.
func (c *Config) Finalize() {
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = GenerateClientID()
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// GenerateClientID returns a random "nodevents-xxxxxxxx" client id.
func GenerateClientID() string {
	return ClientIDPrefix + uuid.NewString()[:8]
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Broker.Host == "" && !c.Broker.Discover {
		add("broker.host is required unless broker.discover is set")
	}
	if c.Broker.Port < 0 || c.Broker.Port > 65535 {
		add("broker.port %d out of range", c.Broker.Port)
	}
	if (c.Broker.TLS.CertFile == "") != (c.Broker.TLS.KeyFile == "") {
		add("broker.tls.cert_file and broker.tls.key_file must be set together")
	}
	for name, d := range map[string]time.Duration{
		"keep_alive":             c.Broker.KeepAlive,
		"connect_timeout":        c.Broker.ConnectTimeout,
		"subscribe_timeout":      c.Broker.SubscribeTimeout,
		"max_reconnect_interval": c.Broker.MaxReconnectInterval,
	} {
		if d < 0 {
			add("broker.%s must not be negative", name)
		}
	}

	if _, err := topic.ParseProfile(c.Events.Profile); err != nil {
		add("events.profile: %v", err)
	}
	if _, err := c.Mask(); err != nil {
		add("events.mask: %v", err)
	}
	if c.Events.QoS < 0 || c.Events.QoS > 2 {
		add("events.qos %d out of range", c.Events.QoS)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		add("log_level: %v", err)
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path %q must start with /", c.Metrics.Path)
	}

	return errors.Join(errs...)
}

// Mask returns the configured capability mask. An empty mask is zero.
func (c *Config) Mask() (topic.Mask, error) {
	if c.Events.Mask == "" {
		return 0, nil
	}
	return topic.ParseMask(c.Events.Mask)
}

// Selection converts the events section.
func (c *Config) Selection() (registry.Selection, error) {
	profile, err := topic.ParseProfile(c.Events.Profile)
	if err != nil {
		return registry.Selection{}, err
	}
	mask, err := c.Mask()
	if err != nil {
		return registry.Selection{}, err
	}

	ids := c.Events.Identifiers
	return registry.Selection{
		Profile: profile,
		Mask:    mask,
		Identifiers: topic.Identifiers{
			EntityID:       ids.EntityID,
			OutputID:       ids.OutputID,
			TransactionID:  ids.TransactionID,
			Index:          ids.Index,
			Bech32Address:  ids.Bech32Address,
			Ed25519Address: ids.Ed25519Address,
		},
		QoS:    byte(c.Events.QoS),
		QoS0:   c.Events.QoS == 0,
		Strict: c.Events.StrictIdentifiers,
	}, nil
}

// TLSConfig returns the transport TLS settings, or nil when TLS is off.
func (c *Config) TLSConfig() *transport.TLSConfig {
	t := &transport.TLSConfig{
		CAFile:             c.Broker.TLS.CAFile,
		CertFile:           c.Broker.TLS.CertFile,
		KeyFile:            c.Broker.TLS.KeyFile,
		ServerName:         c.Broker.TLS.ServerName,
		InsecureSkipVerify: c.Broker.TLS.InsecureSkipVerify,
	}
	if !c.Broker.TLS.Enabled && !t.Enabled() {
		return nil
	}
	return t
}

// MQTTConfig converts the broker section. TLS files are loaded here.
func (c *Config) MQTTConfig(logger *slog.Logger) (transport.MQTTConfig, error) {
	mc := transport.MQTTConfig{
		Host:                 c.Broker.Host,
		Port:                 c.Broker.Port,
		ClientID:             c.Broker.ClientID,
		Username:             c.Broker.Username,
		Password:             c.Broker.Password,
		KeepAlive:            c.Broker.KeepAlive,
		ConnectTimeout:       c.Broker.ConnectTimeout,
		SubscribeTimeout:     c.Broker.SubscribeTimeout,
		MaxReconnectInterval: c.Broker.MaxReconnectInterval,
		Logger:               logger,
	}
	if t := c.TLSConfig(); t != nil {
		tc, err := transport.NewClientTLSConfig(t)
		if err != nil {
			return transport.MQTTConfig{}, fmt.Errorf("broker TLS: %w", err)
		}
		mc.TLS = tc
	}
	return mc, nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
