// Package console provides the interactive command-line interface of
// nodevents.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/nodevents/nodevents-go/pkg/engine"
	"github.com/nodevents/nodevents-go/pkg/registry"
	"github.com/nodevents/nodevents-go/pkg/topic"
)

// Controller is the engine surface the console drives.
type Controller interface {
	Apply(sel registry.Selection) error
	IsRunning() bool
	State() engine.State
	Filters() []registry.Subscription
	Selection() (registry.Selection, bool)
	SessionID() string
}

var _ Controller = (*engine.Engine)(nil)

// Console handles interactive mode.
type Console struct {
	ctrl Controller
	rl   *readline.Instance
	out  io.Writer

	// base carries the profile, identifiers and QoS of the next session.
	base registry.Selection
}

// New creates a console. base supplies everything but the mask of the
// sessions started with the events command.
func New(ctrl Controller, base registry.Selection) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nodevents> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(ctrl, base, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(ctrl Controller, base registry.Selection, out io.Writer) *Console {
	return &Console{ctrl: ctrl, base: base, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for event output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	// Closing the instance unblocks Readline on shutdown.
	stop := context.AfterFunc(ctx, func() { c.rl.Close() })
	defer stop()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Execute(line); quit {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It reports true when the console should
// exit.
func (c *Console) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "events", "node_events", "e":
		c.cmdEvents(args)

	case "status", "s":
		c.cmdStatus()

	case "topics", "t":
		c.cmdTopics()

	case "id":
		c.cmdID(args)

	case "profile":
		c.cmdProfile(args)

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Node Event Commands:
  Session:
    events <hex>        - Start events for a capability mask, 0 stops them
    status              - Show session status
    topics              - List subscribed topic filters

  Selection (applies to the next session):
    id <kind> <value>   - Set an identifier (entity, output, tx, index, bech32, ed25519)
    id <kind> -         - Clear an identifier
    profile <name>      - Select the node API (stardust, chrysalis)

  General:
    help                - Show this help
    quit                - Exit

  Capability bits:
    01 milestones        02 blocks            04 tagged data       08 referenced milestones
    10 block metadata    20 output            40 tx inclusion      80 block transactions`)
}

func (c *Console) cmdEvents(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: events <hex mask>")
		return
	}

	mask, err := topic.ParseMask(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Received Event Select : %d\n", mask)

	sel := c.base
	sel.Mask = mask
	if err := c.ctrl.Apply(sel); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	if mask.IsZero() {
		fmt.Fprintln(c.out, "Node events stopped")
		return
	}
	fmt.Fprintf(c.out, "Node events started (mask %s, %d topics)\n", mask, len(c.ctrl.Filters()))
}

func (c *Console) cmdStatus() {
	fmt.Fprintln(c.out, "\nSession Status")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  State:          %s\n", c.ctrl.State())

	sel, running := c.ctrl.Selection()
	if !running {
		fmt.Fprintln(c.out, "  Running:        no")
		fmt.Fprintf(c.out, "  Profile:        %s\n", c.base.Profile)
		fmt.Fprintln(c.out)
		return
	}

	fmt.Fprintln(c.out, "  Running:        yes")
	fmt.Fprintf(c.out, "  Session:        %s\n", c.ctrl.SessionID())
	fmt.Fprintf(c.out, "  Profile:        %s\n", sel.Profile)
	fmt.Fprintf(c.out, "  Mask:           %s\n", sel.Mask)
	fmt.Fprintf(c.out, "  Topics:         %d\n", len(c.ctrl.Filters()))
	fmt.Fprintln(c.out)
}

func (c *Console) cmdTopics() {
	filters := c.ctrl.Filters()
	if len(filters) == 0 {
		fmt.Fprintln(c.out, "No active subscriptions")
		return
	}
	for _, f := range filters {
		fmt.Fprintf(c.out, "  %s (QoS %d)\n", f.Filter, f.QoS)
	}
}

func (c *Console) cmdID(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: id <entity|output|tx|index|bech32|ed25519> <value|->")
		return
	}

	value := args[1]
	if value == "-" {
		value = ""
	}

	ids := &c.base.Identifiers
	switch strings.ToLower(args[0]) {
	case "entity", "block", "message":
		ids.EntityID = value
	case "output":
		ids.OutputID = value
	case "tx", "transaction":
		ids.TransactionID = value
	case "index", "tag":
		ids.Index = value
	case "bech32":
		ids.Bech32Address = value
	case "ed25519":
		ids.Ed25519Address = value
	default:
		fmt.Fprintf(c.out, "Unknown identifier: %s\n", args[0])
		return
	}
	fmt.Fprintf(c.out, "%s set\n", args[0])
}

func (c *Console) cmdProfile(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Profile: %s\n", c.base.Profile)
		return
	}
	p, err := topic.ParseProfile(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.base.Profile = p
	fmt.Fprintf(c.out, "Profile: %s\n", p)
}
