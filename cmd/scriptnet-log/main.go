// Command scriptnet-log views and analyzes transport capture files.
//
// Capture files are written by scriptnet when run with --protocol-log.
//
// Usage:
//
//	scriptnet-log <command> [flags] <file.tlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only TLS handshake outcomes
//	scriptnet-log view -category handshake session.tlog
//
//	# View raw socket bytes
//	scriptnet-log view -layer socket session.tlog
//
//	# Filter one connection into a new file
//	scriptnet-log filter -conn-id abc12345 -o conn.tlog session.tlog
//
//	# Export every session whose certificate failed verification
//	scriptnet-log export -unverified -format csv session.tlog
//
//	# Show statistics
//	scriptnet-log stats session.tlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mash-protocol/scriptnet/cmd/scriptnet-log/commands"
)

const usage = `scriptnet-log - Transport Capture Analyzer

Usage:
  scriptnet-log <command> [flags] <file.tlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "scriptnet-log <command> -help" for more information about a command.
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

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// logPath returns the single positional argument or exits with usage.
func logPath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `scriptnet-log view - View log file in human-readable format

Usage:
  scriptnet-log view [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (socket, tls, transport)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (data, state, handshake, error)")
	kind := fs.String("kind", "", "Filter by transport kind (tcp, tls, udp)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := logPath(fs)

	filter := commands.ViewFilter{Kind: *kind}

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `scriptnet-log export - Export log file to JSON or CSV format

Usage:
  scriptnet-log export [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	selection := selectionFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := logPath(fs)

	opts := commands.ExportOptions{Format: *format, Output: *output, Select: selection()}
	if err := commands.RunExport(path, opts); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `scriptnet-log filter - Filter log file and write to new file

Usage:
  scriptnet-log filter [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	selection := selectionFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := logPath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := selection()
	opts.Output = *output
	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

// selectionFlags registers the event selection flags on fs and returns a
// function that collects them after parsing.
func selectionFlags(fs *flag.FlagSet) func() commands.FilterOptions {
	connID := fs.String("conn-id", "", "Filter by connection ID")
	kind := fs.String("kind", "", "Filter by transport kind (tcp, tls, udp)")
	host := fs.String("host", "", "Filter by connect host")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (socket, tls, transport)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (data, state, handshake, error)")
	op := fs.String("op", "", "Keep errors of one operation (getaddrinfo, connect, read, write, handshake)")
	queued := fs.Bool("queued", false, "Keep frames that were queued behind the socket")
	unverified := fs.Bool("unverified", false, "Keep sessions whose certificate failed verification")
	failed := fs.Bool("failed", false, "Keep sessions that ended with an error")

	return func() commands.FilterOptions {
		return commands.FilterOptions{
			ConnID:     *connID,
			Kind:       *kind,
			Host:       *host,
			TimeStart:  *timeStart,
			TimeEnd:    *timeEnd,
			Layer:      *layer,
			Direction:  *direction,
			Category:   *category,
			Op:         *op,
			Queued:     *queued,
			Unverified: *unverified,
			Failed:     *failed,
		}
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `scriptnet-log stats - Show statistics about the log file

Usage:
  scriptnet-log stats <file.tlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := logPath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
