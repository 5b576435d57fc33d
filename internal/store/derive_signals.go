package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// ProbeStats summarizes a labeler's probe-history window the way the
// derivation engine's regime cascade and scoring consume it: a count,
// success ratio, and transition/fail-streak counters over the 30-day
// window, plus the raw 7-day status sequence the regime cascade's
// "mixed statuses" check inspects directly.
type ProbeStats struct {
	Count30d           int
	SuccessRatio30d    float64
	TransitionCount30d int
	RecentFailStreak   int
	Statuses7d         []string
}

// ProbeStatsSince computes ProbeStats from every probe_history row at
// or after since30d, splitting out the since7d-and-later subsequence
// for Statuses7d — a single ordered scan standing in for
// _fetch_probe_history's one-query-then-split-in-memory shape.
func (s *Store) ProbeStatsSince(ctx context.Context, labelerDID, since7d, since30d string) (ProbeStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, normalized_status FROM labeler_probe_history
		WHERE labeler_did = ? AND ts >= ?
		ORDER BY ts ASC
	`, labelerDID, since30d)
	if err != nil {
		return ProbeStats{}, errs.New(errs.Store, "probe_stats_since", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses30d []string
	var statuses7d []string
	for rows.Next() {
		var ts, status string
		if err := rows.Scan(&ts, &status); err != nil {
			return ProbeStats{}, errs.New(errs.Store, "probe_stats_since_scan", err)
		}
		statuses30d = append(statuses30d, status)
		if ts >= since7d {
			statuses7d = append(statuses7d, status)
		}
	}
	if err := rows.Err(); err != nil {
		return ProbeStats{}, errs.New(errs.Store, "probe_stats_since_rows", err)
	}

	stats := ProbeStats{Count30d: len(statuses30d), Statuses7d: statuses7d}
	successes := 0
	for i, st := range statuses30d {
		if st == "accessible" {
			successes++
		}
		if i > 0 && st != statuses30d[i-1] {
			stats.TransitionCount30d++
		}
	}
	if stats.Count30d > 0 {
		stats.SuccessRatio30d = float64(successes) / float64(stats.Count30d)
	}
	for i := len(statuses30d) - 1; i >= 0; i-- {
		if statuses30d[i] != "accessible" {
			stats.RecentFailStreak++
		} else {
			break
		}
	}
	return stats, nil
}

// ReceiptTransitionCounts returns how many "regime" and "inference_risk"
// derived receipts a labeler has accrued since the given timestamp —
// the class/confidence transition counters the regime cascade's
// flapping check and the inference-risk scorer both read.
func (s *Store) ReceiptTransitionCounts(ctx context.Context, labelerDID, since30d string) (regimeCount, inferenceRiskCount int, err error) {
	rows, qerr := s.db.QueryContext(ctx, `
		SELECT receipt_type, COUNT(*) FROM derived_receipts
		WHERE labeler_did = ? AND ts >= ?
		GROUP BY receipt_type
	`, labelerDID, since30d)
	if qerr != nil {
		return 0, 0, errs.New(errs.Store, "receipt_transition_counts", qerr)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var receiptType string
		var count int
		if err := rows.Scan(&receiptType, &count); err != nil {
			return 0, 0, errs.New(errs.Store, "receipt_transition_counts_scan", err)
		}
		switch receiptType {
		case "regime":
			regimeCount = count
		case "inference_risk":
			inferenceRiskCount = count
		}
	}
	return regimeCount, inferenceRiskCount, rows.Err()
}

// LastEventTS returns the most recent label_events timestamp for a
// labeler, and false if it has no events yet.
func (s *Store) LastEventTS(ctx context.Context, labelerDID string) (string, bool, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM label_events WHERE labeler_did = ?
	`, labelerDID).Scan(&ts)
	if err != nil {
		return "", false, errs.New(errs.Store, "last_event_ts", err)
	}
	if !ts.Valid {
		return "", false, nil
	}
	return ts.String, true, nil
}

// LastRegimeChangeTS returns the most recent "regime" derived-receipt
// timestamp for a labeler, and false if it has never changed regime.
func (s *Store) LastRegimeChangeTS(ctx context.Context, labelerDID string) (string, bool, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM derived_receipts WHERE labeler_did = ? AND receipt_type = 'regime'
	`, labelerDID).Scan(&ts)
	if err != nil {
		return "", false, errs.New(errs.Store, "last_regime_change_ts", err)
	}
	if !ts.Valid {
		return "", false, nil
	}
	return ts.String, true, nil
}
