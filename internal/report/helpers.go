package report

import (
	"fmt"
	"html"
	"html/template"
	"sort"
	"strings"
)

// didSlug makes a DID safe for use as a path segment:
// did:plc:abc123 -> did-plc-abc123.
func didSlug(did string) string {
	return strings.ReplaceAll(did, ":", "-")
}

func displayName(did, handle, name string) string {
	if name != "" {
		return name
	}
	if handle != "" {
		return handle
	}
	return did
}

func labelerLink(did, handle, name string) template.HTML {
	slug := didSlug(did)
	label := name
	if label == "" {
		label = handle
	}
	if label != "" {
		return template.HTML(fmt.Sprintf(`<a href="labeler/%s.html">%s</a> <span class="small">(%s)</span>`,
			html.EscapeString(slug), html.EscapeString(label), html.EscapeString(did)))
	}
	return template.HTML(fmt.Sprintf(`<a href="labeler/%s.html">%s</a>`, html.EscapeString(slug), html.EscapeString(did)))
}

func endpointDot(status string) template.HTML {
	switch status {
	case "accessible":
		return `<span class="endpoint-dot endpoint-ok" title="Accessible"></span>`
	case "auth_required", "unknown", "":
		label := status
		if label == "" {
			label = "unknown"
		}
		return template.HTML(fmt.Sprintf(`<span class="endpoint-dot endpoint-warn" title="%s"></span>`, html.EscapeString(label)))
	case "down":
		return `<span class="endpoint-dot endpoint-down" title="Down"></span>`
	default:
		return `<span class="endpoint-dot endpoint-warn" title="Unknown"></span>`
	}
}

func visibilityBadge(class string) template.HTML {
	labels := map[string][2]string{
		"declared":         {"Declared", "badge-stable"},
		"protocol_public":  {"Protocol", "badge-burst"},
		"observed_only":    {"Observed", "badge-fixated"},
		"unresolved":       {"Unresolved", "badge-low-conf"},
	}
	pair, ok := labels[class]
	if !ok {
		pair = [2]string{"Unknown", "badge-low-conf"}
	}
	return template.HTML(fmt.Sprintf(`<span class="badge %s">%s</span>`, pair[1], html.EscapeString(pair[0])))
}

// behaviorBadges summarizes which anomaly rules fired for a labeler
// within a window into the report's colored badge set.
func behaviorBadges(ruleIDs map[string]bool) template.HTML {
	type kv struct{ label, class string }
	var badges []kv
	if ruleIDs["label_rate_spike"] {
		badges = append(badges, kv{"Burst-prone", "badge-burst"})
	}
	if ruleIDs["churn_index"] {
		badges = append(badges, kv{"High churn", "badge-churn"})
	}
	if ruleIDs["target_concentration"] {
		badges = append(badges, kv{"Target-fixated", "badge-fixated"})
	}
	if ruleIDs["flip_flop"] {
		badges = append(badges, kv{"Reversal-heavy", "badge-flipflop"})
	}
	if len(badges) == 0 {
		badges = append(badges, kv{"Stable", "badge-stable"})
	}
	var sb strings.Builder
	for _, b := range badges {
		sb.WriteString(fmt.Sprintf(`<span class="badge %s">%s</span> `, b.class, html.EscapeString(b.label)))
	}
	return template.HTML(sb.String())
}

// sparklineSVG renders an hourly-count series as a minimal polyline
// sparkline, the Go analogue of report.py's _sparkline_svg.
func sparklineSVG(values []int, width, height int) template.HTML {
	peak := 0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if len(values) == 0 || peak == 0 {
		return template.HTML(fmt.Sprintf(`<svg class="sparkline" width="%d" height="%d"></svg>`, width, height))
	}
	n := len(values)
	pad := 1.0
	var points []string
	for i, v := range values {
		denom := n - 1
		if denom < 1 {
			denom = 1
		}
		x := pad + (float64(i)/float64(denom))*(float64(width)-2*pad)
		y := float64(height) - pad - (float64(v)/float64(peak))*(float64(height)-2*pad)
		points = append(points, fmt.Sprintf("%.1f,%.1f", x, y))
	}
	return template.HTML(fmt.Sprintf(
		`<svg class="sparkline" width="%d" height="%d" viewBox="0 0 %d %d"><polyline points="%s" fill="none" stroke="var(--sparkline-stroke)" stroke-width="1.5" /></svg>`,
		width, height, width, height, strings.Join(points, " ")))
}

func table(headers []string, rows [][]template.HTML) template.HTML {
	var sb strings.Builder
	sb.WriteString("<table><thead><tr>")
	for _, h := range headers {
		sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			sb.WriteString("<td>" + string(cell) + "</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	return template.HTML(sb.String())
}

func esc(s string) template.HTML {
	return template.HTML(html.EscapeString(s))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
