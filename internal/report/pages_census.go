package report

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
)

func writeCensusHTML(dir string, ov Overview, nowTS string) error {
	var body strings.Builder
	body.WriteString("<h2>Discovery census</h2>")
	body.WriteString(`<div class="census-grid">`)
	body.WriteString(censusCard(ov.LabelerCount, "Total labelers"))
	body.WriteString(censusCard(ov.TestDevCount, "Test/dev"))
	body.WriteString(censusCard(ov.WarmupCount, "Warming up"))
	body.WriteString("</div>")

	fields := []struct {
		label  string
		counts map[string]int
	}{
		{"Visibility class", ov.Census.VisibilityClass},
		{"Reachability state", ov.Census.ReachabilityState},
		{"Classification confidence", ov.Census.ClassificationConfidence},
		{"Auditability", ov.Census.Auditability},
	}
	for _, f := range fields {
		body.WriteString("<h3>" + string(esc(f.label)) + "</h3>")
		body.WriteString(`<div class="census-grid">`)
		for _, k := range sortedKeys(f.counts) {
			body.WriteString(censusCard(f.counts[k], k))
		}
		body.WriteString("</div>")
	}

	body.WriteString(fmt.Sprintf(`<p class="small">Last census: %s</p>`, string(esc(nowTS))))
	body.WriteString(`<p><a href="index.html">Back to overview</a></p>`)

	html, err := renderLayout("Labelwatch census", template.HTML(body.String()))
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "census.html"), html)
}

func censusCard(value int, label string) string {
	return fmt.Sprintf(`<div class="census-card"><div class="value">%d</div><div class="label">%s</div></div>`, value, string(esc(label)))
}
