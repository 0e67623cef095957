// Command nodevents-log is a tool for viewing and analyzing node event trace
// files.
//
// Trace files are written by nodevents when it runs with --trace.
//
// Usage:
//
//	nodevents-log <command> [flags] <file.nlog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	nodevents-log view session.nlog
//
//	# View only milestone messages
//	nodevents-log view --class milestone session.nlog
//
//	# View subscription traffic
//	nodevents-log view --category subscription session.nlog
//
//	# Export to CSV
//	nodevents-log export --format csv -o session.csv session.nlog
//
//	# Keep one session and save to new file
//	nodevents-log filter --session-id 3f2a9c1b -o one.nlog session.nlog
//
//	# Show statistics
//	nodevents-log stats session.nlog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/nodevents/nodevents-go/cmd/nodevents-log/commands"
)

const usage = `nodevents-log - Node Event Trace Analyzer

Usage:
  nodevents-log <command> [flags] <file.nlog>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "nodevents-log <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the filter flags every command
// accepts.
func newFlagSet(name, summary string, opts *commands.FilterOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "nodevents-log %s - %s\n\nUsage:\n  nodevents-log %s [flags] <file.nlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.SessionID, "session-id", "", "Filter by session ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, subscription, dispatch)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, subscription, state, error)")
	fs.StringVar(&opts.Class, "class", "", "Filter messages by class (milestone, metadata, output, raw, unrecognized)")
	fs.StringVar(&opts.TopicPrefix, "topic", "", "Filter by topic prefix")
	return fs
}

// parse parses args and returns the trace path.
func parse(fs *pflag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("view", "View trace file in human-readable format", &opts)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("export", "Export trace file to JSON or CSV format", &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("filter", "Filter trace file and write to new file", &opts)
	output := fs.StringP("output", "o", "", "Output file (required)")
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunFilter(path, *output, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("stats", "Show statistics about the trace file", &opts)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunStats(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}
