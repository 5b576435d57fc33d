package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/report"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// runReportCmd implements `labelwatch report` — either a JSON query
// over one labeler or recent alerts (--labeler / --alerts), or a full
// HTML+JSON site render (--format html), matching cli.py's cmd_report.
func runReportCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	bindGlobalFlags(fs, &g)
	labelerDID := fs.String("labeler", "", "Labeler DID")
	showAlerts := fs.Bool("alerts", false, "Show recent alerts")
	since := fs.String("since", "", "Duration like 24h, 7d")
	nowArg := fs.String("now", "", "ISO-8601 timestamp or 'max'")
	format := fs.String("format", "json", "json | html")
	out := fs.String("out", "", "Output directory for HTML report")
	limit := fs.Int("limit", 50, "Max alerts to show")
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

	if *format == "html" {
		outDir := *out
		if outDir == "" {
			outDir = "report"
		}
		now, ok, err := resolveNow(ctx, st, *nowArg, "alerts")
		if err != nil {
			return fail(stderr, "Error: %v", err)
		}
		if !ok {
			now = time.Now().UTC()
		}
		if err := report.Generate(ctx, st, cfg, outDir, now); err != nil {
			return fail(stderr, "Error: report: %v", err)
		}
		data, _ := json.Marshal(map[string]interface{}{"report_dir": outDir})
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	nowTable := "label_events"
	if *showAlerts {
		nowTable = "alerts"
	}
	now, haveNow, err := resolveNow(ctx, st, *nowArg, nowTable)
	if err != nil {
		return fail(stderr, "Error: %v", err)
	}

	if *labelerDID != "" {
		l, err := st.GetLabeler(ctx, *labelerDID)
		if err != nil {
			data, _ := json.Marshal(map[string]string{"error": "labeler not found"})
			_, _ = fmt.Fprintln(stdout, string(data))
			return 0
		}
		alerts, err := st.AlertsForLabeler(ctx, *labelerDID)
		if err != nil {
			return fail(stderr, "Error: %v", err)
		}
		totalEvents, err := totalEventCount(ctx, st, *labelerDID)
		if err != nil {
			return fail(stderr, "Error: %v", err)
		}
		out := map[string]interface{}{
			"labeler_did":  l.LabelerDID,
			"first_seen":   l.FirstSeen,
			"last_seen":    l.LastSeen,
			"total_events": totalEvents,
			"total_alerts": len(alerts),
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	if *showAlerts {
		var sinceTS string
		if *since != "" {
			d, err := parseDuration(*since)
			if err != nil {
				return fail(stderr, "Error: %v", err)
			}
			base := time.Now().UTC()
			if haveNow {
				base = now
			}
			sinceTS = base.Add(-d).UTC().Format(time.RFC3339Nano)
		}
		rows, err := queryAlerts(ctx, st, sinceTS, now, haveNow, *limit)
		if err != nil {
			return fail(stderr, "Error: %v", err)
		}
		data, _ := json.MarshalIndent(rows, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	return fail(stderr, "Error: report requires --labeler or --alerts")
}

func totalEventCount(ctx context.Context, st *store.Store, labelerDID string) (int, error) {
	return st.CountEventsSince(ctx, labelerDID, "0000-01-01T00:00:00Z")
}

// queryAlerts mirrors cmd_report's alerts branch: an optional --since
// lower bound and an optional --now upper bound, applied in Go over
// AllAlerts since the bounds are rarely both set and a 5000-row cap
// already bounds the query cost.
func queryAlerts(ctx context.Context, st *store.Store, sinceTS string, now time.Time, haveNow bool, limit int) ([]store.Alert, error) {
	all, err := st.AllAlerts(ctx, 5000)
	if err != nil {
		return nil, err
	}
	nowTS := ""
	if haveNow {
		nowTS = now.UTC().Format(time.RFC3339Nano)
	}
	filtered := make([]store.Alert, 0, len(all))
	for _, a := range all {
		if sinceTS != "" && a.TS < sinceTS {
			continue
		}
		if nowTS != "" && a.TS > nowTS {
			continue
		}
		filtered = append(filtered, a)
		if len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	unit := value[len(value)-1]
	numPart := value[:len(value)-1]
	var n float64
	if _, err := fmt.Sscanf(numPart, "%f", &n); err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	switch unit {
	case 'h':
		return time.Duration(n * float64(time.Hour)), nil
	case 'd':
		return time.Duration(n * float64(24*time.Hour)), nil
	case 'm':
		return time.Duration(n * float64(time.Minute)), nil
	default:
		return 0, fmt.Errorf("duration must end with m, h, or d")
	}
}
