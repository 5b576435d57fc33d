package store

import (
	"context"
	"database/sql"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// UpsertDiscoveredLabeler writes a discovery-pass observation of a
// labeler. handle, displayName, and serviceEndpoint are applied with
// COALESCE so a later pass that didn't re-observe a field doesn't blank
// it out; the four boolean evidence flags are MAX-merged so that, once
// set, they never regress — a labeler classified as declared today
// stays declared even if a later scan's DID document lookup fails.
func (s *Store) UpsertDiscoveredLabeler(ctx context.Context, l Labeler, seenTS string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labelers(
			labeler_did, handle, display_name, service_endpoint,
			labeler_class, is_reference, endpoint_status, last_probed,
			first_seen, last_seen,
			visibility_class, reachability_state,
			classification_confidence, classification_reason,
			classification_version, classified_at, auditability,
			observed_as_src, has_labeler_service, has_label_key,
			declared_record, likely_test_dev
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(labeler_did) DO UPDATE SET
			handle=COALESCE(excluded.handle, labelers.handle),
			display_name=COALESCE(excluded.display_name, labelers.display_name),
			service_endpoint=COALESCE(excluded.service_endpoint, labelers.service_endpoint),
			labeler_class=excluded.labeler_class,
			is_reference=excluded.is_reference,
			endpoint_status=excluded.endpoint_status,
			last_probed=excluded.last_probed,
			last_seen=excluded.last_seen,
			visibility_class=excluded.visibility_class,
			reachability_state=excluded.reachability_state,
			classification_confidence=excluded.classification_confidence,
			classification_reason=excluded.classification_reason,
			classification_version=excluded.classification_version,
			classified_at=excluded.classified_at,
			auditability=excluded.auditability,
			observed_as_src=MAX(labelers.observed_as_src, excluded.observed_as_src),
			has_labeler_service=MAX(labelers.has_labeler_service, excluded.has_labeler_service),
			has_label_key=MAX(labelers.has_label_key, excluded.has_label_key),
			declared_record=MAX(labelers.declared_record, excluded.declared_record),
			likely_test_dev=excluded.likely_test_dev
	`,
		l.LabelerDID, nullable(l.Handle), nullable(l.DisplayName), nullable(l.ServiceEndpoint),
		l.LabelerClass, boolToInt(l.IsReference), l.EndpointStatus, nullable(l.LastProbed),
		seenTS, seenTS,
		l.VisibilityClass, l.ReachabilityState,
		l.ClassificationConfidence, nullable(l.ClassificationReason),
		l.ClassificationVersion, seenTS, l.Auditability,
		boolToInt(l.ObservedAsSrc), boolToInt(l.HasLabelerService), boolToInt(l.HasLabelKey),
		boolToInt(l.DeclaredRecord), boolToInt(l.LikelyTestDev),
	)
	if err != nil {
		return errs.New(errs.Store, "upsert_discovered_labeler", err)
	}
	return nil
}

// TouchObservedLabeler records a labeler seen only as an event's src —
// the minimal observed_only path that never runs through discovery.
// It never regresses an existing row's sticky flags or classification.
func (s *Store) TouchObservedLabeler(ctx context.Context, labelerDID, seenTS string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labelers(labeler_did, first_seen, last_seen, observed_as_src, visibility_class, reachability_state)
		VALUES (?, ?, ?, 1, 'observed_only', 'unknown')
		ON CONFLICT(labeler_did) DO UPDATE SET
			last_seen=excluded.last_seen,
			observed_as_src=MAX(labelers.observed_as_src, excluded.observed_as_src)
	`, labelerDID, seenTS, seenTS)
	if err != nil {
		return errs.New(errs.Store, "touch_observed_labeler", err)
	}
	return nil
}

// TouchLabelerSeen records that labelerDID owns a batch of ingested
// events, without asserting anything about its reachability or
// observed-as-src status — the plain registration ingest performs for
// the labeler_did a fetch targeted, as distinct from the stronger
// observed-as-src claim TouchObservedLabeler records for an event's
// src field.
func (s *Store) TouchLabelerSeen(ctx context.Context, labelerDID, seenTS string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labelers(labeler_did, first_seen, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(labeler_did) DO UPDATE SET last_seen=excluded.last_seen
	`, labelerDID, seenTS, seenTS)
	if err != nil {
		return errs.New(errs.Store, "touch_labeler_seen", err)
	}
	return nil
}

// MarkReferenceDID flags a known reference labeler DID as official
// platform infrastructure even if discovery never enumerated it
// directly, matching discovery's reference-DID backfill pass.
func (s *Store) MarkReferenceDID(ctx context.Context, labelerDID string) error {
	return s.exec(ctx, "mark_reference_did", `
		UPDATE labelers SET is_reference=1, labeler_class='official_platform' WHERE labeler_did=?
	`, labelerDID)
}

// IncrementScanCount bumps scan_count for every labeler row in a single
// statement, matching the scan pass's batched increment.
func (s *Store) IncrementScanCount(ctx context.Context) error {
	return s.exec(ctx, "increment_scan_count", `UPDATE labelers SET scan_count = scan_count + 1`)
}

// GetLabeler fetches a single labeler row by DID.
func (s *Store) GetLabeler(ctx context.Context, labelerDID string) (*Labeler, error) {
	row := s.db.QueryRowContext(ctx, labelerSelectColumns+` WHERE labeler_did = ?`, labelerDID)
	l, err := scanLabeler(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errs.New(errs.Store, "get_labeler", err)
	}
	return l, nil
}

// ListLabelers returns every labeler row, ordered by first_seen, for
// report assembly and derivation-engine batch passes.
func (s *Store) ListLabelers(ctx context.Context) ([]Labeler, error) {
	rows, err := s.db.QueryContext(ctx, labelerSelectColumns+` ORDER BY first_seen ASC`)
	if err != nil {
		return nil, errs.New(errs.Store, "list_labelers", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Labeler
	for rows.Next() {
		l, err := scanLabeler(rows)
		if err != nil {
			return nil, errs.New(errs.Store, "list_labelers_scan", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

const labelerSelectColumns = `
SELECT labeler_did, handle, description, first_seen, last_seen,
	display_name, service_endpoint, labeler_class, is_reference, endpoint_status, last_probed,
	visibility_class, reachability_state, classification_confidence, classification_reason,
	classification_version, classified_at, auditability,
	observed_as_src, has_labeler_service, has_label_key, declared_record, likely_test_dev, scan_count,
	regime_state, regime_pending, regime_pending_count, regime_reasons, regime_changed_at,
	auditability_risk, auditability_risk_band, auditability_risk_reasons, auditability_risk_prev,
	inference_risk, inference_risk_band, inference_risk_reasons, inference_risk_prev,
	temporal_coherence, temporal_coherence_band, temporal_coherence_reasons, temporal_coherence_prev,
	coverage_ratio, coverage_attempts_30d, coverage_successes_30d, last_ingest_success_ts, last_ingest_attempt_ts
FROM labelers`

type scannable interface {
	Scan(dest ...any) error
}

func scanLabeler(row scannable) (*Labeler, error) {
	var (
		l                                                                       Labeler
		handle, description, firstSeen, lastSeen                               sql.NullString
		displayName, serviceEndpoint, lastProbed                               sql.NullString
		classificationReason, classifiedAt                                     sql.NullString
		regimeState, regimePending, regimeReasons, regimeChangedAt             sql.NullString
		auditRiskBand, auditRiskReasons, inferRiskBand, inferRiskReasons       sql.NullString
		tempCoherenceBand, tempCoherenceReasons                                sql.NullString
		lastIngestSuccess, lastIngestAttempt                                   sql.NullString
		isReference, observedAsSrc, hasLabelerService, hasLabelKey             int
		declaredRecord, likelyTestDev                                          int
		auditRisk, auditRiskPrev, inferRisk, inferRiskPrev                     sql.NullInt64
		tempCoherence, tempCoherencePrev                                       sql.NullInt64
		coverageRatio                                                          sql.NullFloat64
	)

	err := row.Scan(
		&l.LabelerDID, &handle, &description, &firstSeen, &lastSeen,
		&displayName, &serviceEndpoint, &l.LabelerClass, &isReference, &l.EndpointStatus, &lastProbed,
		&l.VisibilityClass, &l.ReachabilityState, &l.ClassificationConfidence, &classificationReason,
		&l.ClassificationVersion, &classifiedAt, &l.Auditability,
		&observedAsSrc, &hasLabelerService, &hasLabelKey, &declaredRecord, &likelyTestDev, &l.ScanCount,
		&regimeState, &regimePending, &l.RegimePendingCount, &regimeReasons, &regimeChangedAt,
		&auditRisk, &auditRiskBand, &auditRiskReasons, &auditRiskPrev,
		&inferRisk, &inferRiskBand, &inferRiskReasons, &inferRiskPrev,
		&tempCoherence, &tempCoherenceBand, &tempCoherenceReasons, &tempCoherencePrev,
		&coverageRatio, &l.CoverageAttempts30d, &l.CoverageSuccesses30d, &lastIngestSuccess, &lastIngestAttempt,
	)
	if err != nil {
		return nil, err
	}

	l.Handle = handle.String
	l.Description = description.String
	l.FirstSeen = firstSeen.String
	l.LastSeen = lastSeen.String
	l.DisplayName = displayName.String
	l.ServiceEndpoint = serviceEndpoint.String
	l.LastProbed = lastProbed.String
	l.ClassificationReason = classificationReason.String
	l.ClassifiedAt = classifiedAt.String
	l.IsReference = isReference != 0
	l.ObservedAsSrc = observedAsSrc != 0
	l.HasLabelerService = hasLabelerService != 0
	l.HasLabelKey = hasLabelKey != 0
	l.DeclaredRecord = declaredRecord != 0
	l.LikelyTestDev = likelyTestDev != 0
	l.RegimeState = regimeState.String
	l.RegimePending = regimePending.String
	l.RegimeReasons = regimeReasons.String
	l.RegimeChangedAt = regimeChangedAt.String
	l.AuditabilityRiskBand = auditRiskBand.String
	l.AuditabilityRiskReasons = auditRiskReasons.String
	l.InferenceRiskBand = inferRiskBand.String
	l.InferenceRiskReasons = inferRiskReasons.String
	l.TemporalCoherenceBand = tempCoherenceBand.String
	l.TemporalCoherenceReasons = tempCoherenceReasons.String
	l.LastIngestSuccessTS = lastIngestSuccess.String
	l.LastIngestAttemptTS = lastIngestAttempt.String

	if auditRisk.Valid {
		v := int(auditRisk.Int64)
		l.AuditabilityRisk = &v
	}
	if auditRiskPrev.Valid {
		v := int(auditRiskPrev.Int64)
		l.AuditabilityRiskPrev = &v
	}
	if inferRisk.Valid {
		v := int(inferRisk.Int64)
		l.InferenceRisk = &v
	}
	if inferRiskPrev.Valid {
		v := int(inferRiskPrev.Int64)
		l.InferenceRiskPrev = &v
	}
	if tempCoherence.Valid {
		v := int(tempCoherence.Int64)
		l.TemporalCoherence = &v
	}
	if tempCoherencePrev.Valid {
		v := int(tempCoherencePrev.Int64)
		l.TemporalCoherencePrev = &v
	}
	if coverageRatio.Valid {
		v := coverageRatio.Float64
		l.CoverageRatio = &v
	}

	return &l, nil
}

// UpdateRegime writes the derivation engine's regime-cascade outcome
// for a labeler, including the hysteresis bookkeeping fields.
func (s *Store) UpdateRegime(ctx context.Context, labelerDID, state, pending string, pendingCount int, reasons, changedAt string) error {
	return s.exec(ctx, "update_regime", `
		UPDATE labelers SET
			regime_state = ?,
			regime_pending = ?,
			regime_pending_count = ?,
			regime_reasons = ?,
			regime_changed_at = ?
		WHERE labeler_did = ?
	`, state, nullable(pending), pendingCount, reasons, changedAt, labelerDID)
}

// ScoreUpdate carries a single derived score's new value, band, and
// reason codes; Prev is the value the score held before this update,
// recorded so callers can detect direction-of-change.
type ScoreUpdate struct {
	Value   int
	Band    string
	Reasons string
	Prev    *int
}

// UpdateAuditabilityRisk writes a new auditability_risk score, rolling
// the prior value into auditability_risk_prev.
func (s *Store) UpdateAuditabilityRisk(ctx context.Context, labelerDID string, u ScoreUpdate) error {
	return s.exec(ctx, "update_auditability_risk", `
		UPDATE labelers SET
			auditability_risk_prev = auditability_risk,
			auditability_risk = ?,
			auditability_risk_band = ?,
			auditability_risk_reasons = ?
		WHERE labeler_did = ?
	`, u.Value, u.Band, u.Reasons, labelerDID)
}

// UpdateInferenceRisk writes a new inference_risk score, rolling the
// prior value into inference_risk_prev.
func (s *Store) UpdateInferenceRisk(ctx context.Context, labelerDID string, u ScoreUpdate) error {
	return s.exec(ctx, "update_inference_risk", `
		UPDATE labelers SET
			inference_risk_prev = inference_risk,
			inference_risk = ?,
			inference_risk_band = ?,
			inference_risk_reasons = ?
		WHERE labeler_did = ?
	`, u.Value, u.Band, u.Reasons, labelerDID)
}

// UpdateTemporalCoherence writes a new temporal_coherence score,
// rolling the prior value into temporal_coherence_prev.
func (s *Store) UpdateTemporalCoherence(ctx context.Context, labelerDID string, u ScoreUpdate) error {
	return s.exec(ctx, "update_temporal_coherence", `
		UPDATE labelers SET
			temporal_coherence_prev = temporal_coherence,
			temporal_coherence = ?,
			temporal_coherence_band = ?,
			temporal_coherence_reasons = ?
		WHERE labeler_did = ?
	`, u.Value, u.Band, u.Reasons, labelerDID)
}

// UpdateCoverage writes the rolling 30-day ingest coverage ratio and
// attempt/success counters.
func (s *Store) UpdateCoverage(ctx context.Context, labelerDID string, ratio float64, attempts, successes int) error {
	return s.exec(ctx, "update_coverage", `
		UPDATE labelers SET
			coverage_ratio = ?,
			coverage_attempts_30d = ?,
			coverage_successes_30d = ?
		WHERE labeler_did = ?
	`, ratio, attempts, successes, labelerDID)
}

// RecordIngestAttempt stamps last_ingest_attempt_ts (and
// last_ingest_success_ts, when ok) on the labeler row.
func (s *Store) RecordIngestAttempt(ctx context.Context, labelerDID, ts string, ok bool) error {
	if ok {
		return s.exec(ctx, "record_ingest_attempt", `
			UPDATE labelers SET last_ingest_attempt_ts = ?, last_ingest_success_ts = ? WHERE labeler_did = ?
		`, ts, ts, labelerDID)
	}
	return s.exec(ctx, "record_ingest_attempt", `
		UPDATE labelers SET last_ingest_attempt_ts = ? WHERE labeler_did = ?
	`, ts, labelerDID)
}
