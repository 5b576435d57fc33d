package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// InsertAlert appends one rule-engine firing as an immutable receipt
// row. Alerts are never updated or deleted after insert — they are the
// audit trail the receipt_hash chains into.
func (s *Store) InsertAlert(ctx context.Context, a Alert) error {
	return s.exec(ctx, "insert_alert", `
		INSERT INTO alerts(rule_id, labeler_did, ts, inputs_json, evidence_hashes_json, config_hash, receipt_hash, warmup_alert)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.RuleID, a.LabelerDID, a.TS, a.InputsJSON, a.EvidenceHashesJSON, a.ConfigHash, a.ReceiptHash, boolToInt(a.WarmupAlert))
}

// RecentAlerts returns alerts for a labeler within the last `since`
// rows, used by the flip-flop rule's state-machine lookback and the
// report's per-labeler alert history.
func (s *Store) RecentAlerts(ctx context.Context, labelerDID, since string, limit int) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, labeler_did, ts, inputs_json, evidence_hashes_json, config_hash, receipt_hash, warmup_alert
		FROM alerts WHERE labeler_did = ? AND ts >= ? ORDER BY ts DESC LIMIT ?
	`, labelerDID, since, limit)
	if err != nil {
		return nil, errs.New(errs.Store, "recent_alerts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Alert
	for rows.Next() {
		var a Alert
		var warmup int
		if err := rows.Scan(&a.ID, &a.RuleID, &a.LabelerDID, &a.TS, &a.InputsJSON, &a.EvidenceHashesJSON, &a.ConfigHash, &a.ReceiptHash, &warmup); err != nil {
			return nil, errs.New(errs.Store, "recent_alerts_scan", err)
		}
		a.WarmupAlert = warmup != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllAlerts returns every alert across all labelers, most recent first,
// used by the report's overview and rollup views.
func (s *Store) AllAlerts(ctx context.Context, limit int) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, labeler_did, ts, inputs_json, evidence_hashes_json, config_hash, receipt_hash, warmup_alert
		FROM alerts ORDER BY ts DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, errs.New(errs.Store, "all_alerts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Alert
	for rows.Next() {
		var a Alert
		var warmup int
		if err := rows.Scan(&a.ID, &a.RuleID, &a.LabelerDID, &a.TS, &a.InputsJSON, &a.EvidenceHashesJSON, &a.ConfigHash, &a.ReceiptHash, &warmup); err != nil {
			return nil, errs.New(errs.Store, "all_alerts_scan", err)
		}
		a.WarmupAlert = warmup != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlertsForLabeler returns every alert for one labeler, most recent
// first — the per-labeler page's alert timeline.
func (s *Store) AlertsForLabeler(ctx context.Context, labelerDID string) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, labeler_did, ts, inputs_json, evidence_hashes_json, config_hash, receipt_hash, warmup_alert
		FROM alerts WHERE labeler_did = ? ORDER BY ts DESC
	`, labelerDID)
	if err != nil {
		return nil, errs.New(errs.Store, "alerts_for_labeler", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Alert
	for rows.Next() {
		var a Alert
		var warmup int
		if err := rows.Scan(&a.ID, &a.RuleID, &a.LabelerDID, &a.TS, &a.InputsJSON, &a.EvidenceHashesJSON, &a.ConfigHash, &a.ReceiptHash, &warmup); err != nil {
			return nil, errs.New(errs.Store, "alerts_for_labeler_scan", err)
		}
		a.WarmupAlert = warmup != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAlert returns a single alert by id, or ErrNotFound.
func (s *Store) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	var a Alert
	var warmup int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, rule_id, labeler_did, ts, inputs_json, evidence_hashes_json, config_hash, receipt_hash, warmup_alert
		FROM alerts WHERE id = ?
	`, id).Scan(&a.ID, &a.RuleID, &a.LabelerDID, &a.TS, &a.InputsJSON, &a.EvidenceHashesJSON, &a.ConfigHash, &a.ReceiptHash, &warmup)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errs.New(errs.Store, "get_alert", err)
	}
	a.WarmupAlert = warmup != 0
	return &a, nil
}

// EventsByHashes returns label_events rows matching any of the given
// event hashes, used to resolve an alert's evidence_hashes_json into
// the raw events the report displays.
func (s *Store) EventsByHashes(ctx context.Context, hashes []string) ([]Event, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(hashes)*2)
	args := make([]interface{}, 0, len(hashes))
	for i, h := range hashes {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, h)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, labeler_did, src, uri, cid, val, neg, exp, sig, ts, event_hash
		FROM label_events WHERE event_hash IN (`+string(placeholders)+`)
	`, args...)
	if err != nil {
		return nil, errs.New(errs.Store, "events_by_hashes", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		var neg int
		var src, cid, exp, sig sql.NullString
		if err := rows.Scan(&e.ID, &e.LabelerDID, &src, &e.URI, &cid, &e.Val, &neg, &exp, &sig, &e.TS, &e.EventHash); err != nil {
			return nil, errs.New(errs.Store, "events_by_hashes_scan", err)
		}
		e.Neg = neg != 0
		e.Src, e.CID, e.Exp, e.Sig = src.String, cid.String, exp.String, sig.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// AlertCountsByRule returns the 30-day alert count per rule_id, used by
// the report's anomaly summary.
func (s *Store) AlertCountsByRule(ctx context.Context, since string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, COUNT(*) FROM alerts WHERE ts >= ? GROUP BY rule_id
	`, since)
	if err != nil {
		return nil, errs.New(errs.Store, "alert_counts_by_rule", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var ruleID string
		var count int
		if err := rows.Scan(&ruleID, &count); err != nil {
			return nil, errs.New(errs.Store, "alert_counts_by_rule_scan", err)
		}
		out[ruleID] = count
	}
	return out, rows.Err()
}

// InsertDerivedReceipt appends a derivation-engine state-transition
// receipt.
func (s *Store) InsertDerivedReceipt(ctx context.Context, r DerivedReceipt) error {
	return s.exec(ctx, "insert_derived_receipt", `
		INSERT INTO derived_receipts(labeler_did, receipt_type, derivation_version, trigger, ts, input_hash, previous_json, new_json, reason_codes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.LabelerDID, r.ReceiptType, r.DerivationVersion, r.Trigger, r.TS, r.InputHash, nullable(r.PreviousJSON), r.NewJSON, r.ReasonCodesJSON)
}

// LastDerivedReceipt returns the most recent receipt of a given type
// for a labeler, or ErrNotFound if none exists yet.
func (s *Store) LastDerivedReceipt(ctx context.Context, labelerDID, receiptType string) (*DerivedReceipt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, labeler_did, receipt_type, derivation_version, trigger, ts, input_hash, previous_json, new_json, reason_codes_json
		FROM derived_receipts WHERE labeler_did = ? AND receipt_type = ? ORDER BY ts DESC LIMIT 1
	`, labelerDID, receiptType)

	var r DerivedReceipt
	var previousJSON string
	err := row.Scan(&r.ID, &r.LabelerDID, &r.ReceiptType, &r.DerivationVersion, &r.Trigger, &r.TS, &r.InputHash, &previousJSON, &r.NewJSON, &r.ReasonCodesJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errs.New(errs.Store, "last_derived_receipt", err)
	}
	r.PreviousJSON = previousJSON
	return &r, nil
}
