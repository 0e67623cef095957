package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/nodevents/nodevents-go/pkg/config"
)

// options holds the command line. Broker and event flags override the
// configuration file only when given.
type options struct {
	ConfigFile  string
	Interactive bool

	LogLevel string

	Host      string
	Port      int
	ClientID  string
	Username  string
	Password  string
	KeepAlive time.Duration
	TLS       bool
	CAFile    string
	Discover  bool

	Profile           string
	Mask              string
	QoS               int
	Strict            bool
	EntityID          string
	OutputID          string
	TransactionID     string
	Index             string
	Bech32Address     string
	Ed25519Address    string
	TracePath         string
	MetricsListen     string
	NATSURL           string
	NATSSubjectPrefix string
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("nodevents", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file path")
	fs.BoolVarP(&opts.Interactive, "interactive", "i", false, "start the interactive console")
	fs.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")

	fs.StringVar(&opts.Host, "host", config.DefaultHost, "broker host")
	fs.IntVarP(&opts.Port, "port", "p", 0, "broker port (default 1883, 8883 with TLS)")
	fs.StringVar(&opts.ClientID, "client-id", "", "MQTT client id (generated if empty)")
	fs.StringVar(&opts.Username, "username", "", "broker user name")
	fs.StringVar(&opts.Password, "password", "", "broker password")
	fs.DurationVar(&opts.KeepAlive, "keep-alive", 0, "MQTT keep-alive interval")
	fs.BoolVar(&opts.TLS, "tls", false, "connect with TLS")
	fs.StringVar(&opts.CAFile, "ca-file", "", "CA bundle for TLS")
	fs.BoolVar(&opts.Discover, "discover", false, "find the broker with mDNS")

	fs.StringVar(&opts.Profile, "profile", "stardust", "node API profile: stardust, chrysalis")
	fs.StringVarP(&opts.Mask, "mask", "m", "", "capability mask in hex, e.g. 01 or ff")
	fs.IntVar(&opts.QoS, "qos", 1, "subscription QoS (0-2)")
	fs.BoolVar(&opts.Strict, "strict", false, "reject masks whose identifiers are missing")
	fs.StringVar(&opts.EntityID, "entity-id", "", "block/message id for metadata events")
	fs.StringVar(&opts.OutputID, "output-id", "", "output id for output events")
	fs.StringVar(&opts.TransactionID, "transaction-id", "", "transaction id for inclusion events")
	fs.StringVar(&opts.Index, "index", "", "indexation tag (chrysalis)")
	fs.StringVar(&opts.Bech32Address, "bech32-address", "", "bech32 address (chrysalis)")
	fs.StringVar(&opts.Ed25519Address, "ed25519-address", "", "ed25519 address hex (chrysalis)")

	fs.StringVar(&opts.TracePath, "trace", "", "write the event trace to this .nlog file")
	fs.StringVar(&opts.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9100")
	fs.StringVar(&opts.NATSURL, "nats-url", "", "forward events to this NATS server")
	fs.StringVar(&opts.NATSSubjectPrefix, "nats-prefix", "", "NATS subject prefix")
	fs.BoolP("help", "h", false, "show help")

	return fs
}

// apply copies the flags that were set onto cfg.
func (o *options) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}

	set("log-level", func() { cfg.LogLevel = o.LogLevel })

	set("host", func() { cfg.Broker.Host = o.Host })
	set("port", func() { cfg.Broker.Port = o.Port })
	set("client-id", func() { cfg.Broker.ClientID = o.ClientID })
	set("username", func() { cfg.Broker.Username = o.Username })
	set("password", func() { cfg.Broker.Password = o.Password })
	set("keep-alive", func() { cfg.Broker.KeepAlive = o.KeepAlive })
	set("tls", func() { cfg.Broker.TLS.Enabled = o.TLS })
	set("ca-file", func() { cfg.Broker.TLS.CAFile = o.CAFile })
	set("discover", func() {
		cfg.Broker.Discover = o.Discover
		if !fs.Changed("host") {
			cfg.Broker.Host = ""
		}
	})

	set("profile", func() { cfg.Events.Profile = o.Profile })
	set("mask", func() { cfg.Events.Mask = o.Mask })
	set("qos", func() { cfg.Events.QoS = o.QoS })
	set("strict", func() { cfg.Events.StrictIdentifiers = o.Strict })
	set("entity-id", func() { cfg.Events.Identifiers.EntityID = o.EntityID })
	set("output-id", func() { cfg.Events.Identifiers.OutputID = o.OutputID })
	set("transaction-id", func() { cfg.Events.Identifiers.TransactionID = o.TransactionID })
	set("index", func() { cfg.Events.Identifiers.Index = o.Index })
	set("bech32-address", func() { cfg.Events.Identifiers.Bech32Address = o.Bech32Address })
	set("ed25519-address", func() { cfg.Events.Identifiers.Ed25519Address = o.Ed25519Address })

	set("trace", func() { cfg.Trace.Path = o.TracePath })
	set("metrics-listen", func() { cfg.Metrics.Listen = o.MetricsListen })
	set("nats-url", func() { cfg.Forward.NATSURL = o.NATSURL })
	set("nats-prefix", func() { cfg.Forward.SubjectPrefix = o.NATSSubjectPrefix })
}
