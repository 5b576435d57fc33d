package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/scheduler"
)

// runServeCmd implements `labelwatch serve` (alias `run`) — the
// long-lived scheduler loop, matching cli.py's cmd_run/run_loop but
// with Go's context+signal idiom (cmd/helm/main.go's runServer) instead
// of a bare blocking call.
func runServeCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	ingestIntervalSeconds := fs.Int("ingest-interval", 120, "Seconds between ingest runs")
	scanIntervalSeconds := fs.Int("scan-interval", 300, "Seconds between scan runs")
	reportOut := fs.String("report-out", "", "Output directory for HTML report")
	windowMinutes := fs.Int("window-minutes", 0, "Override window minutes")
	baselineHours := fs.Int("baseline-hours", 0, "Override baseline hours")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(&g)
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}
	if *windowMinutes > 0 {
		cfg.WindowMinutes = *windowMinutes
	}
	if *baselineHours > 0 {
		cfg.BaselineHours = *baselineHours
	}
	if *reportOut != "" {
		cfg.ReportOutDir = *reportOut
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, "Error: open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	obs := newObservability(cfg)
	logger := obs.Logger()

	loop := scheduler.NewFromConfig(
		st, cfg, logger, obs,
		time.Duration(*ingestIntervalSeconds)*time.Second,
		time.Duration(*scanIntervalSeconds)*time.Second,
	)

	_, _ = fmt.Fprintln(stdout, "labelwatch: starting scheduler loop")
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		return fail(stderr, "Error: %v", err)
	}
	_, _ = fmt.Fprintln(stdout, "labelwatch: shutting down")
	return 0
}
