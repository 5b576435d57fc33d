package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// runExportCmd implements `labelwatch export` — dump every alert as a
// JSON array, matching cli.py's cmd_export.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	format := fs.String("format", "json", "json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *format != "json" {
		return fail(stderr, "Error: unsupported --format %q", *format)
	}

	cfg, err := loadConfig(&g)
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, "Error: open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	// AllAlerts always applies its LIMIT clause (LIMIT 0 would return
	// nothing in SQLite), so export asks for an effectively unbounded
	// count, matching cli.py's cmd_export having no LIMIT at all.
	alerts, err := st.AllAlerts(ctx, 1<<31-1)
	if err != nil {
		return fail(stderr, "Error: export: %v", err)
	}

	data, _ := json.Marshal(alerts)
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
