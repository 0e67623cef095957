// Command nodevents subscribes to a ledger node's MQTT event stream and
// prints every decoded event.
//
// Usage:
//
//	nodevents [flags]
//
// Examples:
//
//	# Follow milestones on a local node
//	nodevents --host localhost --mask 01
//
//	# Watch one output and forward everything to NATS
//	nodevents -m 20 --output-id 0x...00 --nats-url nats://localhost:4222
//
//	# Find the broker with mDNS and drive sessions from the console
//	nodevents --discover -i
//
//	# Start from a configuration file with a trace and metrics
//	nodevents -c /etc/nodevents.yaml --trace session.nlog --metrics-listen :9100
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nodevents/nodevents-go/cmd/nodevents/console"
	"github.com/nodevents/nodevents-go/pkg/config"
	"github.com/nodevents/nodevents-go/pkg/discovery"
	"github.com/nodevents/nodevents-go/pkg/engine"
	nlog "github.com/nodevents/nodevents-go/pkg/log"
	"github.com/nodevents/nodevents-go/pkg/metrics"
	"github.com/nodevents/nodevents-go/pkg/sink"
	"github.com/nodevents/nodevents-go/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := fs.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "Usage: nodevents [flags]")
		fs.PrintDefaults()
		return nil
	}

	cfg, err := loadConfig(&opts, fs)
	if err != nil {
		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Broker.Discover && cfg.Broker.Host == "" {
		if err := discoverBroker(ctx, cfg, logger); err != nil {
			return err
		}
	}

	return serve(ctx, cfg, opts.Interactive, logger)
}

// loadConfig reads the configuration file (if any), applies flags and
// validates the result.
func loadConfig(opts *options, fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	opts.apply(fs, cfg)
	cfg.Finalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func discoverBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	browser, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	if err != nil {
		return err
	}
	defer browser.Stop()

	logger.Info("Browsing for MQTT brokers", "service", discovery.ServiceTypeMQTT)
	svc, err := browser.FindBroker(ctx)
	if err != nil {
		return fmt.Errorf("discover broker: %w", err)
	}

	cfg.Broker.Host = svc.Host
	if len(svc.Addresses) > 0 {
		cfg.Broker.Host = svc.Addresses[0]
	}
	cfg.Broker.Port = int(svc.Port)
	if svc.TLS {
		cfg.Broker.TLS.Enabled = true
	}
	logger.Info("Found broker", "instance", svc.InstanceName, "address", svc.Address(), "tls", svc.TLS)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, interactive bool, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()

	trace, closeTrace, err := openTrace(cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeTrace()

	mqttCfg, err := cfg.MQTTConfig(logger)
	if err != nil {
		return err
	}

	sel, err := cfg.Selection()
	if err != nil {
		return err
	}

	printer := sink.NewPrinter(os.Stdout)
	sinks := []engine.Sink{printer}
	if cfg.Forward.NATSURL != "" {
		fwd, err := sink.DialNATS(cfg.Forward.NATSURL, cfg.Forward.SubjectPrefix, cfg.Broker.ClientID, logger)
		if err != nil {
			return err
		}
		defer fwd.Close()
		sinks = append(sinks, fwd)
		logger.Info("Forwarding events", "nats", cfg.Forward.NATSURL)
	}

	eng := engine.New(engine.Config{
		Transport: transport.NewMQTTFactory(mqttCfg),
		Sink:      sink.NewMulti(sinks...),
		Trace:     trace,
		Metrics:   m,
		Broker:    mqttCfg.BrokerURL(),
		ClientID:  cfg.Broker.ClientID,
	})

	// The console owns the terminal; events are written through it.
	var cons *console.Console
	if interactive {
		if cons, err = console.New(eng, sel); err != nil {
			return err
		}
		printer.SetOutput(cons.Stdout())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, m)
		if err := srv.Listen(); err != nil {
			return err
		}
		logger.Info("Serving metrics", "addr", srv.Addr().String(), "path", cfg.Metrics.Path)
		g.Go(srv.Serve)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if !sel.Mask.IsZero() {
		if err := eng.Start(sel); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("start events: %w", err)
		}
		logger.Info("Node events started", "broker", mqttCfg.BrokerURL(), "mask", sel.Mask.String(),
			"profile", sel.Profile.String(), "topics", len(eng.Filters()))
	} else if !interactive {
		logger.Warn("No capability mask given; nothing to subscribe (use --mask or -i)")
	}

	if cons != nil {
		g.Go(func() error {
			cons.Run(gctx, cancel)
			return nil
		})
	}

	<-gctx.Done()
	logger.Info("Shutting down...")

	if eng.IsRunning() {
		if err := eng.Stop(); err != nil {
			logger.Warn("Stopping events failed", "error", err)
		}
	}
	return g.Wait()
}

// openTrace opens the trace file and, at debug level, mirrors the trace to
// the log. Failed trace writes are counted in m; only the first is logged.
func openTrace(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (nlog.Logger, func(), error) {
	var loggers []nlog.Logger
	closeFn := func() {}

	if cfg.Trace.Path != "" {
		var warned atomic.Bool
		fl, err := nlog.NewFileLogger(cfg.Trace.Path, nlog.WithErrorHandler(func(err error) {
			m.TraceError()
			if !warned.Swap(true) {
				logger.Warn("Writing trace failed", "path", cfg.Trace.Path, "error", err)
			}
		}))
		if err != nil {
			return nil, nil, fmt.Errorf("open trace: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			if n := fl.Errors(); n > 0 {
				logger.Warn("Trace incomplete", "path", cfg.Trace.Path, "lost", n)
			}
			if err := fl.Close(); err != nil {
				logger.Warn("Closing trace failed", "error", err)
			}
		}
		logger.Info("Writing event trace", "path", cfg.Trace.Path)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, nlog.NewSlogAdapter(logger))
	}

	if len(loggers) == 0 {
		return nlog.NoopLogger{}, closeFn, nil
	}
	return nlog.NewMultiLogger(loggers...), closeFn, nil
}
