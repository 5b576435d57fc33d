// Command labelwatch is the entrypoint for the Labelwatch observability
// tool: a single binary that can ingest label events, scan them for
// anomalies, derive per-labeler regime/risk signals, render a report,
// or run all of the above as a long-lived scheduler loop.
//
// Dispatch shape ported from cmd/helm/main.go's Run(args, stdout,
// stderr) int pattern; subcommand set ported from
// original_source/src/labelwatch/cli.py's argparse subparsers.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: every subcommand reads args, writes
// to stdout/stderr, and returns a process exit code rather than
// calling os.Exit directly.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "serve", "run":
		return runServeCmd(args[2:], stdout, stderr)
	case "ingest":
		return runIngestCmd(args[2:], stdout, stderr)
	case "scan":
		return runScanCmd(args[2:], stdout, stderr)
	case "derive":
		return runDeriveCmd(args[2:], stdout, stderr)
	case "discover":
		return runDiscoverCmd(args[2:], stdout, stderr)
	case "report":
		return runReportCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(args[2:], stdout, stderr)
	case "init":
		return runInitCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "labelwatch — observability for decentralized labeling networks")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  labelwatch <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "serve", "Run the ingest/scan/derive/report scheduler loop")
	printCommand(w, "ingest", "Run one ingest pass")
	printCommand(w, "scan", "Run one rule-engine scan pass")
	printCommand(w, "derive", "Run one derivation pass (regime/risk signals)")
	printCommand(w, "discover", "Run one discovery pass (labeler census)")
	printCommand(w, "report", "Query alerts/labelers or render the HTML/JSON report")
	printCommand(w, "export", "Export all alerts as JSON")
	printCommand(w, "doctor", "Check local configuration and database health")
	printCommand(w, "init", "Initialize a new labelwatch project")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Global flags (every subcommand): --config <path>, --db <path>")
	fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-10s %s\n", name, desc)
}
