package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/derive"
)

// runDeriveCmd implements `labelwatch derive` — one derivation pass,
// recomputing each labeler's regime state and the three derived risk
// scores. Not present in cli.py's subcommand set (the snapshot predates
// the derivation engine); flag shape follows scan's for consistency.
func runDeriveCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	nowArg := fs.String("now", "", "ISO-8601 timestamp or 'max'")
	if err := fs.Parse(args); err != nil {
		return 2
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

	now, ok, err := resolveNow(ctx, st, *nowArg, "label_events")
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}
	if !ok {
		now = time.Now().UTC()
	}

	if err := derive.NewEngine(st, cfg).Run(ctx, now); err != nil {
		return fail(stderr, "Error: derive: %v", err)
	}

	data, _ := json.Marshal(map[string]interface{}{"status": "ok"})
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
