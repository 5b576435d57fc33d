package report

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/unpingable/atproto-labelwatch/internal/store"
)

func writeAlertPages(ctx context.Context, st *store.Store, dir string, alerts []store.Alert) error {
	for _, a := range alerts {
		if err := writeOneAlertPage(ctx, st, dir, a); err != nil {
			return fmt.Errorf("report: alert page %d: %w", a.ID, err)
		}
	}
	return nil
}

func writeOneAlertPage(ctx context.Context, st *store.Store, dir string, a store.Alert) error {
	var hashes []string
	_ = json.Unmarshal([]byte(a.EvidenceHashesJSON), &hashes)

	events, err := st.EventsByHashes(ctx, hashes)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"alert":           a,
		"evidence_events": events,
	}
	if err := writeJSON(filepath.Join(dir, "alert", fmt.Sprintf("%d.json", a.ID)), payload); err != nil {
		return err
	}

	receiptRows := [][]template.HTML{
		{esc("rule_id"), esc(a.RuleID)},
		{esc("labeler_did"), esc(a.LabelerDID)},
		{esc("ts"), esc(a.TS)},
		{esc("config_hash"), template.HTML("<code>" + string(esc(a.ConfigHash)) + "</code>")},
		{esc("receipt_hash"), template.HTML("<code>" + string(esc(a.ReceiptHash)) + "</code>")},
		{esc("inputs"), template.HTML("<pre>" + string(esc(a.InputsJSON)) + "</pre>")},
		{esc("evidence_hashes"), template.HTML("<pre>" + string(esc(a.EvidenceHashesJSON)) + "</pre>")},
	}

	var body strings.Builder
	body.WriteString(`<p><a href="../index.html">Overview</a></p>`)
	body.WriteString(string(table([]string{"field", "value"}, receiptRows)))
	body.WriteString("<h2>Evidence events</h2>")
	if len(events) == 0 {
		body.WriteString("<p>No evidence events recorded.</p>")
	} else {
		rows := make([][]template.HTML, 0, len(events))
		for _, e := range events {
			neg := "false"
			if e.Neg {
				neg = "true"
			}
			rows = append(rows, []template.HTML{
				esc(fmt.Sprint(e.ID)), esc(e.TS), esc(e.URI), esc(e.Val), esc(neg), esc(e.CID),
				template.HTML("<code>" + string(esc(e.EventHash)) + "</code>"),
			})
		}
		body.WriteString(string(table([]string{"id", "ts", "uri", "val", "neg", "cid", "event_hash"}, rows)))
	}

	html, err := renderLayout(fmt.Sprintf("Alert %d", a.ID), template.HTML(body.String()))
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "alert", fmt.Sprintf("%d.html", a.ID)), html)
}
