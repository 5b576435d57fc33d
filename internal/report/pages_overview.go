package report

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/unpingable/atproto-labelwatch/internal/store"
)

func writeOverviewHTML(dir string, ov Overview, labelers []store.Labeler, alerts []store.Alert, since7d, nowTS string) error {
	var body strings.Builder

	body.WriteString(`<div class="grid">`)
	body.WriteString(fmt.Sprintf(`<div class="card"><h3>Generated</h3><div>%s</div></div>`, esc(ov.GeneratedAt)))
	body.WriteString(cardOrNever("Last ingest", ov.LastIngest))
	body.WriteString(cardOrNever("Last scan", ov.LastScan))
	body.WriteString(cardOrNever("Last discovery", ov.LastDiscovery))
	body.WriteString(fmt.Sprintf(`<div class="card"><h3>Labelers</h3><div>%d</div></div>`, ov.LabelerCount))
	body.WriteString(fmt.Sprintf(`<div class="card"><h3>Alerts</h3><div>%d</div></div>`, ov.AlertCount))
	body.WriteString(`</div>`)

	if ov.WarmupCount > 0 {
		body.WriteString(fmt.Sprintf(`<div class="warmup-banner">Baselines forming: %d labeler(s) still in warm-up period.</div>`, ov.WarmupCount))
	}

	body.WriteString(`<h2>Build signature</h2>`)
	body.WriteString(string(table([]string{"field", "value"}, [][]template.HTML{
		{esc("schema_version"), esc(fmt.Sprint(ov.BuildSignature.SchemaVersion))},
		{esc("git_commit"), esc(ov.BuildSignature.GitCommit)},
		{esc("config_hash"), template.HTML("<code>" + string(esc(ov.BuildSignature.ConfigHash)) + "</code>")},
	})))

	if len(ov.AlertsByRule24h) > 0 {
		body.WriteString("<h2>Alerts by rule (24h)</h2>")
		body.WriteString(string(dictTable(ov.AlertsByRule24h)))
	}
	if len(ov.AlertsByRule7d) > 0 {
		body.WriteString("<h2>Alerts by rule (7d)</h2>")
		body.WriteString(string(dictTable(ov.AlertsByRule7d)))
	}

	if len(ov.TopLabelers7d) > 0 {
		handles := indexLabelers(labelers)
		rows := make([][]template.HTML, 0, len(ov.TopLabelers7d))
		for _, tl := range ov.TopLabelers7d {
			l := handles[tl.LabelerDID]
			rows = append(rows, []template.HTML{labelerLink(tl.LabelerDID, l.Handle, l.DisplayName), esc(fmt.Sprint(tl.Count))})
		}
		body.WriteString("<h2>Top labelers by alerts (7d)</h2>")
		body.WriteString(string(table([]string{"labeler", "count"}, rows)))
	}

	body.WriteString(renderLabelerTable(labelers, alerts, since7d, nowTS))
	body.WriteString(renderAlertTable(alerts, labelers))

	html, err := renderLayout("Labelwatch overview", template.HTML(body.String()))
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "index.html"), html)
}

func cardOrNever(title, value string) string {
	if value == "" {
		value = "never"
	}
	return fmt.Sprintf(`<div class="card"><h3>%s</h3><div>%s</div></div>`, string(esc(title)), string(esc(value)))
}

func dictTable(m map[string]int) template.HTML {
	rows := make([][]template.HTML, 0, len(m))
	for _, k := range sortedKeys(m) {
		rows = append(rows, []template.HTML{esc(k), esc(fmt.Sprint(m[k]))})
	}
	return table([]string{"rule_id", "count"}, rows)
}

func indexLabelers(labelers []store.Labeler) map[string]store.Labeler {
	out := make(map[string]store.Labeler, len(labelers))
	for _, l := range labelers {
		out[l.LabelerDID] = l
	}
	return out
}

func renderLabelerTable(labelers []store.Labeler, alerts []store.Alert, since7d, nowTS string) string {
	alertsByLabeler := map[string][]store.Alert{}
	for _, a := range alerts {
		alertsByLabeler[a.LabelerDID] = append(alertsByLabeler[a.LabelerDID], a)
	}

	var sb strings.Builder
	sb.WriteString("<h2>Labelers</h2><table><thead><tr><th>labeler</th><th>visibility</th><th>endpoint</th><th>first_seen</th><th>last_seen</th><th>alerts</th><th>behavior</th></tr></thead><tbody>")
	for _, l := range labelers {
		if l.IsReference {
			continue
		}
		ruleIDs := map[string]bool{}
		count := 0
		for _, a := range alertsByLabeler[l.LabelerDID] {
			if a.TS >= since7d && a.TS <= nowTS {
				ruleIDs[a.RuleID] = true
				count++
			}
		}
		sb.WriteString("<tr>")
		sb.WriteString("<td>" + string(labelerLink(l.LabelerDID, l.Handle, l.DisplayName)) + "</td>")
		sb.WriteString("<td>" + string(visibilityBadge(l.VisibilityClass)) + "</td>")
		sb.WriteString("<td>" + string(endpointDot(l.EndpointStatus)) + "</td>")
		sb.WriteString("<td>" + string(esc(l.FirstSeen)) + "</td>")
		sb.WriteString("<td>" + string(esc(l.LastSeen)) + "</td>")
		sb.WriteString(fmt.Sprintf("<td>%d</td>", count))
		sb.WriteString("<td>" + string(behaviorBadges(ruleIDs)) + "</td>")
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	return sb.String()
}

func renderAlertTable(alerts []store.Alert, labelers []store.Labeler) string {
	handles := indexLabelers(labelers)
	limit := len(alerts)
	if limit > 200 {
		limit = 200
	}
	var sb strings.Builder
	sb.WriteString("<h2>Recent alerts</h2><table><thead><tr><th>id</th><th>rule_id</th><th>labeler</th><th>ts</th></tr></thead><tbody>")
	for _, a := range alerts[:limit] {
		l := handles[a.LabelerDID]
		sb.WriteString(fmt.Sprintf(
			`<tr><td><a href="alert/%d.html">%d</a></td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			a.ID, a.ID, string(esc(a.RuleID)), string(labelerLink(a.LabelerDID, l.Handle, l.DisplayName)), string(esc(a.TS)),
		))
	}
	sb.WriteString("</tbody></table>")
	return sb.String()
}
