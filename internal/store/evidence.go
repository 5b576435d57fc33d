package store

import (
	"context"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// InsertEvidence appends a classification-evidence row. Callers are
// expected to dedupe on (labelerDID, evidenceType, evidenceValue)
// themselves within a single discovery pass — this call always
// inserts, matching the append-only evidence trail original discovery
// keeps.
func (s *Store) InsertEvidence(ctx context.Context, e Evidence) error {
	return s.exec(ctx, "insert_evidence", `
		INSERT INTO labeler_evidence(labeler_did, evidence_type, evidence_value, evidence_source, ts)
		VALUES (?, ?, ?, ?, ?)
	`, e.LabelerDID, e.EvidenceType, nullable(e.EvidenceValue), nullable(e.EvidenceSource), e.TS)
}

// GetEvidence returns every evidence row recorded for a labeler, most
// recent first.
func (s *Store) GetEvidence(ctx context.Context, labelerDID string) ([]Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, labeler_did, evidence_type, evidence_value, evidence_source, ts
		FROM labeler_evidence WHERE labeler_did = ? ORDER BY ts DESC
	`, labelerDID)
	if err != nil {
		return nil, errs.New(errs.Store, "get_evidence", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var e Evidence
		var value, source string
		if err := rows.Scan(&e.ID, &e.LabelerDID, &e.EvidenceType, &value, &source, &e.TS); err != nil {
			return nil, errs.New(errs.Store, "get_evidence_scan", err)
		}
		e.EvidenceValue = value
		e.EvidenceSource = source
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertProbeHistory appends a probe result row.
func (s *Store) InsertProbeHistory(ctx context.Context, p ProbeEntry) error {
	return s.exec(ctx, "insert_probe_history", `
		INSERT INTO labeler_probe_history(labeler_did, ts, endpoint, http_status, normalized_status, latency_ms, failure_type, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.LabelerDID, p.TS, nullable(p.Endpoint), p.HTTPStatus, p.NormalizedStatus, p.LatencyMS, nullable(p.FailureType), nullable(p.ErrorText))
}

// ProbeHistory returns the most recent probe rows for a labeler, newest
// first, capped at limit.
func (s *Store) ProbeHistory(ctx context.Context, labelerDID string, limit int) ([]ProbeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, labeler_did, ts, endpoint, http_status, normalized_status, latency_ms, failure_type, error_text
		FROM labeler_probe_history WHERE labeler_did = ? ORDER BY ts DESC LIMIT ?
	`, labelerDID, limit)
	if err != nil {
		return nil, errs.New(errs.Store, "probe_history", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ProbeEntry
	for rows.Next() {
		var p ProbeEntry
		var endpoint, failureType, errorText string
		if err := rows.Scan(&p.ID, &p.LabelerDID, &p.TS, &endpoint, &p.HTTPStatus, &p.NormalizedStatus, &p.LatencyMS, &failureType, &errorText); err != nil {
			return nil, errs.New(errs.Store, "probe_history_scan", err)
		}
		p.Endpoint = endpoint
		p.FailureType = failureType
		p.ErrorText = errorText
		out = append(out, p)
	}
	return out, rows.Err()
}
