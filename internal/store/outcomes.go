package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// InsertIngestOutcome appends an ingest attempt's result, the source
// row the coverage-ratio aggregate and ingest-health report sections
// read from.
func (s *Store) InsertIngestOutcome(ctx context.Context, o IngestOutcome) error {
	return s.exec(ctx, "insert_ingest_outcome", `
		INSERT INTO ingest_outcomes(labeler_did, ts, attempt_id, outcome, events_fetched, http_status, latency_ms, error_type, error_summary, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.LabelerDID, o.TS, o.AttemptID, o.Outcome, o.EventsFetched, o.HTTPStatus, o.LatencyMS, nullable(o.ErrorType), nullable(o.ErrorSummary), o.Source)
}

// CoverageCounts returns the (attempts, successes) pair for a labeler
// within [since, until), the input to the coverage-ratio calculation.
func (s *Store) CoverageCounts(ctx context.Context, labelerDID, since, until string) (attempts, successes int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0)
		FROM ingest_outcomes WHERE labeler_did = ? AND ts >= ? AND ts < ?
	`, labelerDID, since, until)
	if scanErr := row.Scan(&attempts, &successes); scanErr != nil {
		return 0, 0, errs.New(errs.Store, "coverage_counts", scanErr)
	}
	return attempts, successes, nil
}

// CoverageStat is one labeler's rolling ingest coverage.
type CoverageStat struct {
	Ratio      float64
	Attempts   int
	Successes  int
	Sufficient bool
}

// CoverageCacheByLabeler returns every labeler's coverage stat over
// [since, now) in a single query — the rule engine's coverage cache.
// A labeler outcome of "success" or "empty" (a fetch that legitimately
// found nothing new) both count as successes; anything else (error,
// timeout) does not.
func (s *Store) CoverageCacheByLabeler(ctx context.Context, since string, threshold float64) (map[string]CoverageStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT labeler_did,
			COUNT(*) AS attempts,
			SUM(CASE WHEN outcome IN ('success','empty') THEN 1 ELSE 0 END) AS successes
		FROM ingest_outcomes WHERE ts >= ? GROUP BY labeler_did
	`, since)
	if err != nil {
		return nil, errs.New(errs.Store, "coverage_cache_by_labeler", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]CoverageStat)
	for rows.Next() {
		var did string
		var attempts, successes int
		if err := rows.Scan(&did, &attempts, &successes); err != nil {
			return nil, errs.New(errs.Store, "coverage_cache_by_labeler_scan", err)
		}
		ratio := 0.0
		if attempts > 0 {
			ratio = float64(successes) / float64(attempts)
		}
		out[did] = CoverageStat{
			Ratio:      ratio,
			Attempts:   attempts,
			Successes:  successes,
			Sufficient: ratio >= threshold,
		}
	}
	return out, rows.Err()
}

// LastSuccessAndAttempt returns the most recent success/empty outcome
// timestamp and the most recent attempt timestamp for a labeler, or nil
// for either if none exists — the data-gap rule's diagnostic fields.
func (s *Store) LastSuccessAndAttempt(ctx context.Context, labelerDID string) (lastSuccess, lastAttempt *string, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT MAX(ts) FROM ingest_outcomes WHERE labeler_did = ? AND outcome IN ('success','empty')),
			(SELECT MAX(ts) FROM ingest_outcomes WHERE labeler_did = ?)
	`, labelerDID, labelerDID)

	var success, attempt sql.NullString
	if scanErr := row.Scan(&success, &attempt); scanErr != nil {
		return nil, nil, errs.New(errs.Store, "last_success_and_attempt", scanErr)
	}
	if success.Valid {
		lastSuccess = &success.String
	}
	if attempt.Valid {
		lastAttempt = &attempt.String
	}
	return lastSuccess, lastAttempt, nil
}

// RecentIngestOutcomes returns the most recent ingest outcomes for a
// labeler, newest first.
func (s *Store) RecentIngestOutcomes(ctx context.Context, labelerDID string, limit int) ([]IngestOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, labeler_did, ts, attempt_id, outcome, events_fetched, http_status, latency_ms, error_type, error_summary, source
		FROM ingest_outcomes WHERE labeler_did = ? ORDER BY ts DESC LIMIT ?
	`, labelerDID, limit)
	if err != nil {
		return nil, errs.New(errs.Store, "recent_ingest_outcomes", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IngestOutcome
	for rows.Next() {
		var o IngestOutcome
		var errorType, errorSummary string
		if err := rows.Scan(&o.ID, &o.LabelerDID, &o.TS, &o.AttemptID, &o.Outcome, &o.EventsFetched, &o.HTTPStatus, &o.LatencyMS, &errorType, &errorSummary, &o.Source); err != nil {
			return nil, errs.New(errs.Store, "recent_ingest_outcomes_scan", err)
		}
		o.ErrorType = errorType
		o.ErrorSummary = errorSummary
		out = append(out, o)
	}
	return out, rows.Err()
}
