package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/rules"
)

// runScanCmd implements `labelwatch scan` — one rule-engine pass,
// matching cli.py's cmd_scan.
func runScanCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	nowArg := fs.String("now", "", "ISO-8601 timestamp or 'max'")
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

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, "Error: open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	now, ok, err := resolveNow(ctx, st, *nowArg, "label_events")
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}
	if !ok {
		now = time.Now().UTC()
	}

	alerts, err := rules.NewEngine(st, cfg).Run(ctx, now)
	if err != nil {
		return fail(stderr, "Error: scan: %v", err)
	}

	data, _ := json.Marshal(map[string]interface{}{"alerts": len(alerts)})
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
