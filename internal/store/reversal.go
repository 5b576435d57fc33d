package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// GetReversalStats returns the current reversal counter for a labeler,
// or a zero-value stats row (Truncated=false, ReversalCount=0) if none
// has been recorded yet.
func (s *Store) GetReversalStats(ctx context.Context, labelerDID string) (ReversalStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT labeler_did, window_start, window_end, reversal_count, truncated, updated_at
		FROM reversal_stats WHERE labeler_did = ?
	`, labelerDID)

	var r ReversalStats
	var truncated int
	err := row.Scan(&r.LabelerDID, &r.WindowStart, &r.WindowEnd, &r.ReversalCount, &truncated, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ReversalStats{LabelerDID: labelerDID}, nil
		}
		return ReversalStats{}, errs.New(errs.Store, "get_reversal_stats", err)
	}
	r.Truncated = truncated != 0
	return r, nil
}

// UpsertReversalStats writes the reversal counter for a labeler,
// capping at cap and setting Truncated once the raw count would exceed
// it. This is the supplemented, sidecar-independent counterpart to the
// upstream REVERSAL_CAP_PER_LABELER truncation marker: rather than
// depending on an external reversal-tracking sidecar, the store itself
// tracks and caps the count.
func (s *Store) UpsertReversalStats(ctx context.Context, labelerDID, windowStart, windowEnd string, rawCount, capLimit int, updatedAt string) error {
	count := rawCount
	truncated := false
	if count > capLimit {
		count = capLimit
		truncated = true
	}

	return s.exec(ctx, "upsert_reversal_stats", `
		INSERT INTO reversal_stats(labeler_did, window_start, window_end, reversal_count, truncated, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(labeler_did) DO UPDATE SET
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			reversal_count = excluded.reversal_count,
			truncated = excluded.truncated,
			updated_at = excluded.updated_at
	`, labelerDID, windowStart, windowEnd, count, boolToInt(truncated), updatedAt)
}

// CountReversalsSince returns the number of val-flip pairs (neg toggled
// on the same uri) for a labeler since a timestamp, capped at
// scanLimit events scanned to bound work on high-volume labelers; the
// returned bool reports whether the scan hit scanLimit before
// exhausting the window (i.e. the count may be an undercount of the
// true total, independent of the cap applied by UpsertReversalStats).
func (s *Store) CountReversalsSince(ctx context.Context, labelerDID, since string, scanLimit int) (int, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, neg FROM label_events
		WHERE labeler_did = ? AND ts >= ?
		ORDER BY ts ASC
		LIMIT ?
	`, labelerDID, since, scanLimit+1)
	if err != nil {
		return 0, false, errs.New(errs.Store, "count_reversals_since", err)
	}
	defer func() { _ = rows.Close() }()

	lastNeg := make(map[string]int)
	reversals := 0
	scanned := 0
	for rows.Next() {
		var uri string
		var neg int
		if err := rows.Scan(&uri, &neg); err != nil {
			return 0, false, errs.New(errs.Store, "count_reversals_since_scan", err)
		}
		scanned++
		if prev, ok := lastNeg[uri]; ok && prev != neg {
			reversals++
		}
		lastNeg[uri] = neg
	}
	if err := rows.Err(); err != nil {
		return 0, false, errs.New(errs.Store, "count_reversals_since_rows", err)
	}

	scanCapped := scanned > scanLimit
	return reversals, scanCapped, nil
}
