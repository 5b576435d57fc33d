package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/receipts"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

const apiVersion = "v0"

func formatTS(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// Generate renders the full report site into outDir. It builds the
// entire tree in a sibling staging directory first and swaps it into
// place with a single rename, so a concurrent reader (or a server
// serving outDir as static files) never observes a partially written
// report — ported from report.py's _prepare_out_dir/_commit_out_dir.
func Generate(ctx context.Context, st *store.Store, cfg *config.Config, outDir string, now time.Time) error {
	realNow := time.Now().UTC()
	now = now.UTC()
	clamped := false
	if now.After(realNow) {
		now = realNow
		clamped = true
	}

	tmpDir, err := stageDir(outDir)
	if err != nil {
		return fmt.Errorf("report: stage dir: %w", err)
	}

	if err := build(ctx, st, cfg, tmpDir, now, clamped); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}

	if err := commitDir(tmpDir, outDir); err != nil {
		return fmt.Errorf("report: commit dir: %w", err)
	}

	debug.FreeOSMemory()
	return nil
}

func stageDir(outDir string) (string, error) {
	parent := filepath.Dir(filepath.Clean(outDir))
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	tmp := filepath.Join(parent, ".report-tmp-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", err
	}
	return tmp, nil
}

func commitDir(tmpDir, outDir string) error {
	if _, err := os.Stat(outDir); err == nil {
		backup := outDir + ".prev"
		_ = os.RemoveAll(backup)
		if err := os.Rename(outDir, backup); err != nil {
			return err
		}
	}
	return os.Rename(tmpDir, outDir)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func build(ctx context.Context, st *store.Store, cfg *config.Config, dir string, now time.Time, clamped bool) error {
	nowTS := formatTS(now)
	since24h := formatTS(now.Add(-24 * time.Hour))
	since7d := formatTS(now.Add(-7 * 24 * time.Hour))

	labelers, err := st.ListLabelers(ctx)
	if err != nil {
		return err
	}
	alerts, err := st.AllAlerts(ctx, 5000)
	if err != nil {
		return err
	}

	lastIngest, _, err := lastEventTSAll(ctx, st, labelers)
	if err != nil {
		return err
	}
	var lastScan string
	if len(alerts) > 0 {
		lastScan = alerts[0].TS
	}
	lastDiscovery, _, err := st.GetMeta(ctx, "last_discovery_ts")
	if err != nil {
		return err
	}

	heartbeats := map[string]string{}
	for _, key := range []string{"last_ingest_ok_ts", "last_scan_ok_ts", "last_report_ok_ts", "last_discovery_ok_ts", "last_derive_ok_ts"} {
		if v, ok, err := st.GetMeta(ctx, key); err == nil && ok {
			heartbeats[key] = v
		}
	}

	alerts24h, err := st.AlertCountsByRule(ctx, since24h)
	if err != nil {
		return err
	}
	alerts7d, err := st.AlertCountsByRule(ctx, since7d)
	if err != nil {
		return err
	}
	topLabelers := topLabelersByAlerts(alerts, since7d, 10)

	census := computeCensus(labelers)
	testDevCount, warmupCount := 0, 0
	for _, l := range labelers {
		if l.LikelyTestDev {
			testDevCount++
		}
		if l.ScanCount < 3 {
			warmupCount++
		}
	}

	cfgHash := ""
	for _, a := range alerts {
		cfgHash = a.ConfigHash
		break
	}
	if cfgHash == "" {
		cfgHash, err = receipts.ConfigHash(map[string]interface{}{
			"rules": []string{"label_rate_spike", "flip_flop", "target_concentration", "churn_index", "data_gap"},
		})
		if err != nil {
			return err
		}
	}

	overview := Overview{
		APIVersion:           apiVersion,
		GeneratedAt:          nowTS,
		LastIngest:           lastIngest,
		LastScan:             lastScan,
		LastDiscovery:        lastDiscovery,
		Heartbeats:           heartbeats,
		SchemaVersion:        store.CurrentSchemaVersion,
		AlertsByRule24h:      alerts24h,
		AlertsByRule7d:       alerts7d,
		TopLabelers7d:        topLabelers,
		LabelerCount:         len(labelers),
		AlertCount:           len(alerts),
		NowClampedToRealTime: clamped,
		BuildSignature: BuildSignature{
			SchemaVersion: store.CurrentSchemaVersion,
			GitCommit:     gitCommit(),
			ConfigHash:    cfgHash,
		},
		Census:       census,
		TestDevCount: testDevCount,
		WarmupCount:  warmupCount,
	}
	if err := writeJSON(filepath.Join(dir, "overview.json"), overview); err != nil {
		return err
	}

	labelerSummaries := make([]LabelerSummary, 0, len(labelers))
	for _, l := range labelers {
		labelerSummaries = append(labelerSummaries, LabelerSummary{
			LabelerDID:               l.LabelerDID,
			Handle:                   l.Handle,
			DisplayName:              l.DisplayName,
			LabelerClass:             l.LabelerClass,
			IsReference:              l.IsReference,
			EndpointStatus:           l.EndpointStatus,
			VisibilityClass:          l.VisibilityClass,
			ReachabilityState:        l.ReachabilityState,
			Auditability:             l.Auditability,
			ClassificationConfidence: l.ClassificationConfidence,
			FirstSeen:                l.FirstSeen,
			LastSeen:                 l.LastSeen,
			Href:                     "labeler/" + didSlug(l.LabelerDID) + ".html",
		})
	}
	if err := writeJSON(filepath.Join(dir, "labelers.json"), labelerSummaries); err != nil {
		return err
	}

	alertSummaries := make([]AlertSummary, 0, len(alerts))
	for _, a := range alerts {
		alertSummaries = append(alertSummaries, AlertSummary{
			ID: a.ID, RuleID: a.RuleID, LabelerDID: a.LabelerDID, TS: a.TS,
			Href: fmt.Sprintf("alert/%d.html", a.ID),
		})
	}
	if err := writeJSON(filepath.Join(dir, "alerts.json"), alertSummaries); err != nil {
		return err
	}

	if err := writeOverviewHTML(dir, overview, labelers, alerts, since7d, nowTS); err != nil {
		return err
	}
	if err := writeCensusHTML(dir, overview, nowTS); err != nil {
		return err
	}
	if err := writeLabelerPages(ctx, st, dir, labelers, since24h, since7d, nowTS); err != nil {
		return err
	}
	if err := writeAlertPages(ctx, st, dir, alerts); err != nil {
		return err
	}

	return nil
}

func lastEventTSAll(ctx context.Context, st *store.Store, labelers []store.Labeler) (string, bool, error) {
	var max string
	found := false
	for _, l := range labelers {
		ts, ok, err := st.LastEventTS(ctx, l.LabelerDID)
		if err != nil {
			return "", false, err
		}
		if ok && ts > max {
			max = ts
			found = true
		}
	}
	return max, found, nil
}

func topLabelersByAlerts(alerts []store.Alert, since7d string, limit int) []LabelerCount {
	counts := map[string]int{}
	for _, a := range alerts {
		if a.TS >= since7d {
			counts[a.LabelerDID]++
		}
	}
	out := make([]LabelerCount, 0, len(counts))
	for did, c := range counts {
		out = append(out, LabelerCount{LabelerDID: did, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func computeCensus(labelers []store.Labeler) Census {
	c := Census{
		VisibilityClass:          map[string]int{},
		ReachabilityState:        map[string]int{},
		ClassificationConfidence: map[string]int{},
		Auditability:             map[string]int{},
	}
	bump := func(m map[string]int, v string) {
		if v == "" {
			v = "unknown"
		}
		m[v]++
	}
	for _, l := range labelers {
		bump(c.VisibilityClass, l.VisibilityClass)
		bump(c.ReachabilityState, l.ReachabilityState)
		bump(c.ClassificationConfidence, l.ClassificationConfidence)
		bump(c.Auditability, l.Auditability)
	}
	return c
}

func gitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
