package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// InsertEvent inserts an event, silently ignoring the row if
// EventHash already exists — the store's idempotent dedupe boundary
// for re-delivered or re-fetched label events. It reports whether a
// new row was actually written.
func (s *Store) InsertEvent(ctx context.Context, e Event) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO label_events (labeler_did, src, uri, cid, val, neg, exp, sig, ts, event_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_hash) DO NOTHING
	`, e.LabelerDID, nullable(e.Src), e.URI, nullable(e.CID), e.Val, boolToInt(e.Neg), nullable(e.Exp), nullable(e.Sig), e.TS, e.EventHash)
	if err != nil {
		return false, errs.New(errs.Store, "insert_event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.New(errs.Store, "insert_event_rows_affected", err)
	}
	return n > 0, nil
}

// EventStats is the windowed/baseline event count pair the rate-spike
// rule and the derivation engine's burstiness index consume.
type EventStats struct {
	CurrentWindowCount int
	BaselineCount      int
	BaselineHours      int
}

// TotalEventCountsByLabeler returns every labeler's all-time event
// count in a single query, the rule engine's event-count cache (one
// query instead of one per labeler per rule pass).
func (s *Store) TotalEventCountsByLabeler(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT labeler_did, COUNT(*) FROM label_events GROUP BY labeler_did
	`)
	if err != nil {
		return nil, errs.New(errs.Store, "total_event_counts_by_labeler", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var did string
		var count int
		if err := rows.Scan(&did, &count); err != nil {
			return nil, errs.New(errs.Store, "total_event_counts_by_labeler_scan", err)
		}
		out[did] = count
	}
	return out, rows.Err()
}

// CountEventsSince returns the number of events for a labeler with
// ts >= since.
func (s *Store) CountEventsSince(ctx context.Context, labelerDID, since string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM label_events WHERE labeler_did = ? AND ts >= ?
	`, labelerDID, since).Scan(&count)
	if err != nil {
		return 0, errs.New(errs.Store, "count_events_since", err)
	}
	return count, nil
}

// HourlyCounts returns the number of events per UTC hour bucket within
// [since, until) for a labeler, used by the burstiness index (a 168-hour
// histogram) and the flip-flop / concentration rules' windowing.
func (s *Store) HourlyCounts(ctx context.Context, labelerDID, since, until string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%dT%H:00:00Z', ts) AS bucket, COUNT(*)
		FROM label_events
		WHERE labeler_did = ? AND ts >= ? AND ts < ?
		GROUP BY bucket
	`, labelerDID, since, until)
	if err != nil {
		return nil, errs.New(errs.Store, "hourly_counts", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var bucket string
		var count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, errs.New(errs.Store, "hourly_counts_scan", err)
		}
		out[bucket] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.Store, "hourly_counts_rows", err)
	}
	return out, nil
}

// InterarrivalGaps returns inter-arrival gaps in seconds between
// consecutive events for a labeler within [since, until), capped at
// maxEvents rows to bound memory on high-volume labelers — the
// cadence-irregularity coefficient-of-variation only needs a bounded
// sample, not the full history.
func (s *Store) InterarrivalGaps(ctx context.Context, labelerDID, since, until string, maxEvents int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts FROM (
			SELECT ts FROM label_events
			WHERE labeler_did = ? AND ts >= ? AND ts < ?
			ORDER BY ts ASC
			LIMIT ?
		)
	`, labelerDID, since, until, maxEvents)
	if err != nil {
		return nil, errs.New(errs.Store, "interarrival_gaps", err)
	}
	defer func() { _ = rows.Close() }()

	var timestamps []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, errs.New(errs.Store, "interarrival_gaps_scan", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.Store, "interarrival_gaps_rows", err)
	}

	gaps := make([]float64, 0, len(timestamps))
	for i := 1; i < len(timestamps); i++ {
		prev, err := parseTS(timestamps[i-1])
		if err != nil {
			continue
		}
		cur, err := parseTS(timestamps[i])
		if err != nil {
			continue
		}
		gaps = append(gaps, cur.Sub(prev).Seconds())
	}
	return gaps, nil
}

// DistinctTargetsSince returns the distinct uri values a labeler has
// labeled since the given timestamp, used by the Jaccard-churn rule.
func (s *Store) DistinctTargetsSince(ctx context.Context, labelerDID, since, until string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT uri FROM label_events WHERE labeler_did = ? AND ts >= ? AND ts < ?
	`, labelerDID, since, until)
	if err != nil {
		return nil, errs.New(errs.Store, "distinct_targets", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, errs.New(errs.Store, "distinct_targets_scan", err)
		}
		out[uri] = struct{}{}
	}
	return out, rows.Err()
}

// ValueCountsSince returns counts per distinct val within a window, used
// by the HHI-concentration rule.
func (s *Store) ValueCountsSince(ctx context.Context, labelerDID, since, until string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT val, COUNT(*) FROM label_events
		WHERE labeler_did = ? AND ts >= ? AND ts < ?
		GROUP BY val
	`, labelerDID, since, until)
	if err != nil {
		return nil, errs.New(errs.Store, "value_counts", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var val string
		var count int
		if err := rows.Scan(&val, &count); err != nil {
			return nil, errs.New(errs.Store, "value_counts_scan", err)
		}
		out[val] = count
	}
	return out, rows.Err()
}

// TargetCountsSince returns per-uri label counts within [since, until),
// the input to the HHI target-concentration rule.
func (s *Store) TargetCountsSince(ctx context.Context, labelerDID, since, until string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, COUNT(*) FROM label_events
		WHERE labeler_did = ? AND ts >= ? AND ts < ?
		GROUP BY uri
	`, labelerDID, since, until)
	if err != nil {
		return nil, errs.New(errs.Store, "target_counts", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var uri string
		var count int
		if err := rows.Scan(&uri, &count); err != nil {
			return nil, errs.New(errs.Store, "target_counts_scan", err)
		}
		out[uri] = count
	}
	return out, rows.Err()
}

// EvidenceHashesSince returns up to limit event_hash values within
// [since, until), the shared evidence-gathering query every event-driven
// rule uses to attach proof to an alert.
func (s *Store) EvidenceHashesSince(ctx context.Context, labelerDID, since, until string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_hash FROM label_events
		WHERE labeler_did = ? AND ts >= ? AND ts < ?
		LIMIT ?
	`, labelerDID, since, until, limit)
	if err != nil {
		return nil, errs.New(errs.Store, "evidence_hashes_since", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errs.New(errs.Store, "evidence_hashes_since_scan", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// FlipFlopEventRow is one raw row of the (uri,val)-grouped, ts-ordered
// query the flip-flop rule walks as a state machine.
type FlipFlopEventRow struct {
	URI       string
	Val       string
	Neg       bool
	TS        string
	EventHash string
}

// FlipFlopCandidatesSince returns every event for a labeler within
// [since, until), ordered by (uri, val, ts) so the caller can walk each
// group's apply/neg/apply sequence in a single pass.
func (s *Store) FlipFlopCandidatesSince(ctx context.Context, labelerDID, since, until string) ([]FlipFlopEventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, val, neg, ts, event_hash
		FROM label_events
		WHERE labeler_did = ? AND ts >= ? AND ts < ?
		ORDER BY uri, val, ts
	`, labelerDID, since, until)
	if err != nil {
		return nil, errs.New(errs.Store, "flip_flop_candidates", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FlipFlopEventRow
	for rows.Next() {
		var r FlipFlopEventRow
		var neg int
		if err := rows.Scan(&r.URI, &r.Val, &neg, &r.TS, &r.EventHash); err != nil {
			return nil, errs.New(errs.Store, "flip_flop_candidates_scan", err)
		}
		r.Neg = neg != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
