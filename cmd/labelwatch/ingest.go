package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/ingest"
)

// runIngestCmd implements `labelwatch ingest` — one ingest pass against
// the configured service (and, if discovery is enabled, any discovered
// labelers), matching cli.py's cmd_ingest.
func runIngestCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	budgetSeconds := fs.Int("budget", 0, "Seconds to spend on multi-labeler ingest (0 = use config default)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(&g)
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}
	if len(cfg.LabelerDIDs) == 0 {
		return fail(stderr, "Error: labeler_dids must be configured for ingest")
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, "Error: open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	outcome, err := ingest.FromService(ctx, st, cfg)
	if err != nil {
		return fail(stderr, "Error: ingest: %v", err)
	}

	result := map[string]interface{}{"ingested": outcome.Count}

	if cfg.DiscoveryEnabled {
		budget := time.Duration(cfg.MultiIngestBudgetSeconds) * time.Second
		if *budgetSeconds > 0 {
			budget = time.Duration(*budgetSeconds) * time.Second
		}
		outcomes, err := ingest.FromLabelers(ctx, st, cfg, budget)
		if err != nil {
			return fail(stderr, "Error: multi-labeler ingest: %v", err)
		}
		total := outcome.Count
		for _, o := range outcomes {
			total += o.Count
		}
		result["ingested"] = total
		result["labelers_ingested"] = len(outcomes)
	}

	data, _ := json.Marshal(result)
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
