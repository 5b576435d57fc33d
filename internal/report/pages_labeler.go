package report

import (
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unpingable/atproto-labelwatch/internal/store"
)

const hourlyBuckets = 168

func writeLabelerPages(ctx context.Context, st *store.Store, dir string, labelers []store.Labeler, since24h, since7d, nowTS string) error {
	for _, l := range labelers {
		if err := writeOneLabelerPage(ctx, st, dir, l, since24h, since7d, nowTS); err != nil {
			return fmt.Errorf("report: labeler page %s: %w", l.LabelerDID, err)
		}
	}
	return nil
}

func writeOneLabelerPage(ctx context.Context, st *store.Store, dir string, l store.Labeler, since24h, since7d, nowTS string) error {
	events24h, err := st.CountEventsSince(ctx, l.LabelerDID, since24h)
	if err != nil {
		return err
	}
	events7d, err := st.CountEventsSince(ctx, l.LabelerDID, since7d)
	if err != nil {
		return err
	}
	hourly, err := st.HourlyCounts(ctx, l.LabelerDID, since7d, nowTS)
	if err != nil {
		return err
	}
	sparkCounts := bucketHourly(hourly, since7d)

	alerts, err := st.AlertsForLabeler(ctx, l.LabelerDID)
	if err != nil {
		return err
	}
	topTargets, err := st.TargetCountsSince(ctx, l.LabelerDID, since7d, nowTS)
	if err != nil {
		return err
	}
	evidence, err := st.GetEvidence(ctx, l.LabelerDID)
	if err != nil {
		return err
	}
	probes, err := st.ProbeHistory(ctx, l.LabelerDID, 10)
	if err != nil {
		return err
	}
	reversal, err := st.GetReversalStats(ctx, l.LabelerDID)
	if err != nil {
		return err
	}

	ruleIDs := map[string]bool{}
	for _, a := range alerts {
		if a.TS >= since7d {
			ruleIDs[a.RuleID] = true
		}
	}

	slug := didSlug(l.LabelerDID)
	payload := map[string]interface{}{
		"labeler_did":               l.LabelerDID,
		"handle":                    l.Handle,
		"display_name":              l.DisplayName,
		"labeler_class":             l.LabelerClass,
		"is_reference":              l.IsReference,
		"endpoint_status":           l.EndpointStatus,
		"visibility_class":          l.VisibilityClass,
		"reachability_state":        l.ReachabilityState,
		"auditability":              l.Auditability,
		"classification_confidence": l.ClassificationConfidence,
		"classification_reason":     l.ClassificationReason,
		"first_seen":                l.FirstSeen,
		"last_seen":                 l.LastSeen,
		"events_24h":                events24h,
		"events_7d":                 events7d,
		"reversal_count_7d":         reversal.ReversalCount,
		"reversal_truncated":        reversal.Truncated,
		"top_targets_7d":            topTargetsJSON(topTargets, 10),
	}
	if err := writeJSON(filepath.Join(dir, "labeler", slug+".json"), payload); err != nil {
		return err
	}

	title := l.LabelerDID
	if l.DisplayName != "" {
		title = l.DisplayName + " (" + l.LabelerDID + ")"
	} else if l.Handle != "" {
		title = l.Handle + " (" + l.LabelerDID + ")"
	}

	var body strings.Builder
	body.WriteString(`<p><a href="../index.html">Overview</a> | <a href="../census.html">Census</a></p>`)
	body.WriteString(`<p class="labeler-context">This is a labeler service. It publishes labels about posts and accounts on the Bluesky network.</p>`)
	if l.ScanCount < 3 {
		body.WriteString(`<div class="warmup-banner">This labeler is still in warm-up period (insufficient scan history).</div>`)
	}

	body.WriteString(`<div class="card"><div class="health-bar">`)
	body.WriteString(healthMetric(events7d, "Events (7d)"))
	body.WriteString(healthMetric(len(topTargets), "Distinct targets"))
	body.WriteString(healthMetric(len(alerts), "Total alerts"))
	body.WriteString(fmt.Sprintf(`<div class="health-metric">%s<div class="label">Activity (7d)</div></div>`, sparklineSVG(sparkCounts, 120, 24)))
	body.WriteString(`</div><div>`)
	body.WriteString(string(behaviorBadges(ruleIDs)))
	body.WriteString(`</div></div>`)

	body.WriteString(`<div class="grid">`)
	body.WriteString(infoCard("Labeler", string(esc(title))))
	body.WriteString(infoCard("Classification", string(visibilityBadge(l.VisibilityClass))+" "+string(esc(l.VisibilityClass))))
	body.WriteString(infoCard("Reachability", string(endpointDot(l.EndpointStatus))+" "+string(esc(orUnknown(l.ReachabilityState)))))
	body.WriteString(infoCard("Auditability", string(esc(orUnknown(l.Auditability)))))
	body.WriteString(infoCard("First seen", string(esc(l.FirstSeen))))
	body.WriteString(infoCard("Last seen", string(esc(l.LastSeen))))
	body.WriteString(infoCard("Events (24h)", fmt.Sprint(events24h)))
	body.WriteString(infoCard("Events (7d)", fmt.Sprint(events7d)))
	body.WriteString(infoCard("Reversals (7d)", reversalCell(reversal)))
	body.WriteString(`</div>`)

	body.WriteString(evidenceSection(evidence, l.ClassificationReason))

	if len(topTargets) > 0 {
		body.WriteString("<h2>Top targets (7d)</h2>")
		rows := make([][]template.HTML, 0, len(topTargets))
		for _, t := range sortedTargetCounts(topTargets, 10) {
			rows = append(rows, []template.HTML{esc(t.URI), esc(fmt.Sprint(t.Count))})
		}
		body.WriteString(string(table([]string{"uri", "count"}, rows)))
	}

	body.WriteString(probeHistorySection(probes))
	body.WriteString(alertsTimeline(alerts))

	html, err := renderLayout("Labeler: "+title, template.HTML(body.String()))
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "labeler", slug+".html"), html)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func healthMetric(value int, label string) string {
	return fmt.Sprintf(`<div class="health-metric"><div class="value">%d</div><div class="label">%s</div></div>`, value, string(esc(label)))
}

func infoCard(title, valueHTML string) string {
	return fmt.Sprintf(`<div class="card"><h3>%s</h3><div>%s</div></div>`, string(esc(title)), valueHTML)
}

func reversalCell(r store.ReversalStats) string {
	if r.Truncated {
		return fmt.Sprintf("%d+ (capped)", r.ReversalCount)
	}
	return fmt.Sprint(r.ReversalCount)
}

func bucketHourly(hourly map[string]int, since7d string) []int {
	out := make([]int, hourlyBuckets)
	for idx, k := range sortedKeys(hourly) {
		if idx >= hourlyBuckets {
			break
		}
		out[idx] = hourly[k]
	}
	return out
}

type targetCount struct {
	URI   string
	Count int
}

func sortedTargetCounts(m map[string]int, limit int) []targetCount {
	out := make([]targetCount, 0, len(m))
	for uri, c := range m {
		out = append(out, targetCount{uri, c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topTargetsJSON(m map[string]int, limit int) []TargetCount {
	ranked := sortedTargetCounts(m, limit)
	out := make([]TargetCount, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, TargetCount{URI: t.URI, Count: t.Count})
	}
	return out
}

func evidenceSection(evidence []store.Evidence, reason string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="evidence-section"><details><summary>Why classified this way</summary><div class="card" style="margin-top:0.5rem">`)
	r := reason
	if r == "" {
		r = "No classification yet"
	}
	sb.WriteString(fmt.Sprintf(`<div><strong>Reason:</strong> %s</div><h4>Evidence surfaces</h4>`, string(esc(r))))
	if len(evidence) == 0 {
		sb.WriteString(`<div class="evidence-item">No evidence records yet.</div>`)
	}
	limit := len(evidence)
	if limit > 20 {
		limit = 20
	}
	for _, e := range evidence[:limit] {
		sb.WriteString(fmt.Sprintf(`<div class="evidence-item">%s: %s <span class="small">(%s)</span></div>`,
			string(esc(e.EvidenceType)), string(esc(e.EvidenceValue)), string(esc(e.TS))))
	}
	sb.WriteString(`</div></details></div>`)
	return sb.String()
}

func probeHistorySection(probes []store.ProbeEntry) string {
	var sb strings.Builder
	sb.WriteString("<h2>Probe history</h2>")
	if len(probes) == 0 {
		sb.WriteString(`<p class="small">No probe history recorded yet.</p>`)
		return sb.String()
	}
	rows := make([][]template.HTML, 0, len(probes))
	for _, p := range probes {
		latency := ""
		if p.LatencyMS != nil {
			latency = fmt.Sprintf("%dms", *p.LatencyMS)
		}
		httpStatus := ""
		if p.HTTPStatus != nil {
			httpStatus = fmt.Sprint(*p.HTTPStatus)
		}
		rows = append(rows, []template.HTML{esc(p.TS), esc(p.NormalizedStatus), esc(httpStatus), esc(latency), esc(p.FailureType)})
	}
	sb.WriteString(string(table([]string{"ts", "status", "http", "latency", "failure"}, rows)))
	return sb.String()
}

func alertsTimeline(alerts []store.Alert) string {
	var sb strings.Builder
	sb.WriteString(`<h2>Alerts timeline</h2><table><thead><tr><th>id</th><th>rule_id</th><th>ts</th></tr></thead><tbody>`)
	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf(
			`<tr><td><a href="../alert/%d.html">%d</a></td><td>%s</td><td>%s</td></tr>`,
			a.ID, a.ID, string(esc(a.RuleID)), string(esc(a.TS)),
		))
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}
