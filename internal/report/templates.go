package report

import (
	"html/template"
	"strings"
)

// style is the report's stylesheet, condensed from report.py's STYLE
// constant into a single light/dark theme pair driven by a data-theme
// attribute.
const style = `
:root {
  --bg:#fff; --fg:#111; --fg-muted:#666; --border:#ddd; --link:#0b5394;
  --card-bg:#fff; --card-border:#ddd; --pre-bg:#f5f5f5;
  --badge-stable-bg:#d4edda; --badge-stable-fg:#155724;
  --badge-burst-bg:#fff3cd; --badge-burst-fg:#856404;
  --badge-churn-bg:#f8d7da; --badge-churn-fg:#721c24;
  --badge-fixated-bg:#ffe0cc; --badge-fixated-fg:#7a3300;
  --badge-flipflop-bg:#e2d5f1; --badge-flipflop-fg:#3d1f6e;
  --badge-lowconf-bg:#e2e3e5; --badge-lowconf-fg:#6c757d;
  --warmup-bg:#fff3cd; --warmup-border:#ffc107;
  --sparkline-stroke:#0b5394;
}
body { font-family: Georgia, "Times New Roman", serif; margin: 2rem; color: var(--fg); background: var(--bg); }
h1, h2, h3 { font-family: "Gill Sans", "Trebuchet MS", sans-serif; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border-bottom: 1px solid var(--border); padding: 0.5rem; text-align: left; }
.small { color: var(--fg-muted); font-size: 0.9rem; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; }
.census-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 1rem; margin: 1rem 0; }
.card, .census-card { border: 1px solid var(--card-border); padding: 0.9rem; border-radius: 6px; background: var(--card-bg); }
.census-card { text-align: center; }
.census-card .value, .health-metric .value { font-size: 1.5rem; font-weight: bold; }
.census-card .label, .health-metric .label { font-size: 0.75rem; color: var(--fg-muted); }
a { color: var(--link); text-decoration: none; }
a:hover { text-decoration: underline; }
code { font-family: "Courier New", monospace; }
pre { background: var(--pre-bg); padding: 0.5rem; border-radius: 4px; overflow-x: auto; }
.badge { display: inline-block; padding: 0.15rem 0.5rem; border-radius: 3px; font-size: 0.8rem; font-weight: bold; margin-right: 0.3rem; }
.badge-stable { background: var(--badge-stable-bg); color: var(--badge-stable-fg); }
.badge-burst { background: var(--badge-burst-bg); color: var(--badge-burst-fg); }
.badge-churn { background: var(--badge-churn-bg); color: var(--badge-churn-fg); }
.badge-fixated { background: var(--badge-fixated-bg); color: var(--badge-fixated-fg); }
.badge-flipflop { background: var(--badge-flipflop-bg); color: var(--badge-flipflop-fg); }
.badge-low-conf { background: var(--badge-lowconf-bg); color: var(--badge-lowconf-fg); font-weight: normal; }
.health-bar { display: flex; gap: 1.5rem; align-items: center; }
.anomaly-row { background: #fff8f0; }
.warmup-banner { background: var(--warmup-bg); border: 1px solid var(--warmup-border); padding: 0.75rem 1rem; border-radius: 6px; margin-bottom: 1rem; }
.endpoint-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 0.3rem; }
.endpoint-ok { background: #28a745; }
.endpoint-warn { background: #ffc107; }
.endpoint-down { background: #dc3545; }
`

const layoutTmplSrc = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1" />
<title>{{.Title}}</title>
<style>` + style + `</style>
</head>
<body>
<header><h1>{{.Title}}</h1><p class="small">Generated by labelwatch</p></header>
{{.Body}}
</body>
</html>`

var layoutTmpl = template.Must(template.New("layout").Parse(layoutTmplSrc))

type layoutData struct {
	Title string
	Body  template.HTML
}

func renderLayout(title string, body template.HTML) (string, error) {
	var buf strings.Builder
	if err := layoutTmpl.Execute(&buf, layoutData{Title: title, Body: body}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
