package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/unpingable/atproto-labelwatch/internal/discover"
)

// runDiscoverCmd implements `labelwatch discover` — one discovery pass
// building the labeler census. Not present in cli.py's subcommand set
// (the snapshot predates discovery); flag shape mirrors the other
// single-pass subcommands.
func runDiscoverCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(&g)
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}
	if !cfg.DiscoveryEnabled {
		return fail(stderr, "Error: discovery_enabled is false in config")
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, "Error: open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	summary, err := discover.RunDiscovery(ctx, st, cfg, discover.DefaultOptions())
	if err != nil {
		return fail(stderr, "Error: discover: %v", err)
	}

	data, _ := json.Marshal(summary)
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
