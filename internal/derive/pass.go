package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/receipts"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// Engine owns the store queries the derivation pass needs: per-labeler
// signal assembly, the hysteresis-gated regime cascade, the three
// scorers, and receipt emission on change. Ported from
// original_source/src/labelwatch/scan.py's _run_derive_pass/
// _build_all_signals/_emit_receipt_if_changed.
type Engine struct {
	store *store.Store
	cfg   *config.Config
}

// NewEngine builds a derivation Engine bound to a store and configuration.
func NewEngine(st *store.Store, cfg *config.Config) *Engine {
	return &Engine{store: st, cfg: cfg}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, ts)
}

// Run derives regime state, the three risk/coherence scores, and
// emits change receipts for every known labeler, matching
// _run_derive_pass's one-batch-query-per-signal-kind shape (adapted to
// per-labeler store calls, since internal/store's query surface is
// already labeler-scoped rather than grouped-by-all-labelers).
func (e *Engine) Run(ctx context.Context, now time.Time) error {
	now = now.UTC()
	ts := formatTS(now)

	since24h := formatTS(now.Add(-24 * time.Hour))
	since7d := formatTS(now.Add(-7 * 24 * time.Hour))
	since30d := formatTS(now.Add(-30 * 24 * time.Hour))

	labelers, err := e.store.ListLabelers(ctx)
	if err != nil {
		return err
	}

	hourKeys := make([]string, 168)
	for i := range hourKeys {
		hourKeys[i] = now.Add(-time.Duration(167-i) * time.Hour).UTC().Format("2006-01-02T15:00:00Z")
	}

	for _, l := range labelers {
		signals, err := e.buildSignals(ctx, l, now, since24h, since7d, since30d, hourKeys)
		if err != nil {
			return fmt.Errorf("derive: build signals for %s: %w", l.LabelerDID, err)
		}

		regime := ClassifyRegimeState(signals)
		hystState := HysteresisState{Current: l.RegimeState, Pending: l.RegimePending, PendingCount: l.RegimePendingCount}
		outcome := ApplyHysteresis(hystState, regime.RegimeState, e.cfg.RegimeHysteresisScans)

		effective := regime
		if !outcome.EffectiveIsComputed {
			effective = RegimeResult{RegimeState: outcome.Effective, ReasonCodes: regime.ReasonCodes}
		}

		auditRisk := ScoreAuditabilityRisk(signals)
		infRisk := ScoreInferenceRisk(signals, effective)
		coherence := ScoreTemporalCoherence(signals, effective)

		inputHash, err := receipts.ConfigHash(map[string]interface{}{
			"visibility_class":           signals.VisibilityClass,
			"event_count_30d":            signals.EventCount30d,
			"probe_count_30d":            signals.ProbeCount30d,
			"probe_success_ratio_30d":    roundTo(signals.ProbeSuccessRatio30d, 3),
			"probe_transition_count_30d": signals.ProbeTransitionCount30d,
			"dormancy_days":              roundTo(signals.DormancyDays, 1),
			"scan_count":                 signals.ScanCount,
		})
		if err != nil {
			return err
		}

		if err := e.emitReceiptIfChanged(ctx, l.LabelerDID, "regime", l.RegimeState, effective.RegimeState, effective.ReasonCodes, inputHash, ts); err != nil {
			return err
		}
		if err := e.emitReceiptIfChanged(ctx, l.LabelerDID, "auditability_risk", intPtrToStr(l.AuditabilityRisk), itoa(auditRisk.Score), auditRisk.ReasonCodes, inputHash, ts); err != nil {
			return err
		}
		if err := e.emitReceiptIfChanged(ctx, l.LabelerDID, "inference_risk", intPtrToStr(l.InferenceRisk), itoa(infRisk.Score), infRisk.ReasonCodes, inputHash, ts); err != nil {
			return err
		}

		if err := e.store.UpdateRegime(ctx, l.LabelerDID, effective.RegimeState, outcome.Next.Pending, outcome.Next.PendingCount, reasonsJSON(effective.ReasonCodes), ts); err != nil {
			return err
		}
		if err := e.store.UpdateAuditabilityRisk(ctx, l.LabelerDID, store.ScoreUpdate{
			Value: auditRisk.Score, Band: auditRisk.Band, Reasons: reasonsJSON(auditRisk.ReasonCodes),
		}); err != nil {
			return err
		}
		if err := e.store.UpdateInferenceRisk(ctx, l.LabelerDID, store.ScoreUpdate{
			Value: infRisk.Score, Band: infRisk.Band, Reasons: reasonsJSON(infRisk.ReasonCodes),
		}); err != nil {
			return err
		}
		if err := e.store.UpdateTemporalCoherence(ctx, l.LabelerDID, store.ScoreUpdate{
			Value: coherence.Score, Band: coherence.Band, Reasons: reasonsJSON(coherence.ReasonCodes),
		}); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) buildSignals(ctx context.Context, l store.Labeler, now time.Time, since24h, since7d, since30d string, hourKeys []string) (Signals, error) {
	total30d, err := e.store.CountEventsSince(ctx, l.LabelerDID, since30d)
	if err != nil {
		return Signals{}, err
	}
	total7d, err := e.store.CountEventsSince(ctx, l.LabelerDID, since7d)
	if err != nil {
		return Signals{}, err
	}
	total24h, err := e.store.CountEventsSince(ctx, l.LabelerDID, since24h)
	if err != nil {
		return Signals{}, err
	}
	totalAll, err := e.store.CountEventsSince(ctx, l.LabelerDID, "")
	if err != nil {
		return Signals{}, err
	}

	hourly, err := e.store.HourlyCounts(ctx, l.LabelerDID, since7d, formatTS(now))
	if err != nil {
		return Signals{}, err
	}
	hourlyCounts := make([]int, len(hourKeys))
	for i, hk := range hourKeys {
		hourlyCounts[i] = hourly[hk]
	}

	interarrival, err := e.store.InterarrivalGaps(ctx, l.LabelerDID, since7d, formatTS(now), 5000)
	if err != nil {
		return Signals{}, err
	}

	dormancyDays := 9999.0
	lastEventTS, hasLast, err := e.store.LastEventTS(ctx, l.LabelerDID)
	if err != nil {
		return Signals{}, err
	}
	if hasLast {
		if t, err := parseTS(lastEventTS); err == nil {
			dormancyDays = now.Sub(t).Hours() / 24
		}
	}

	probeStats, err := e.store.ProbeStatsSince(ctx, l.LabelerDID, since7d, since30d)
	if err != nil {
		return Signals{}, err
	}

	regimeCount, inferenceCount, err := e.store.ReceiptTransitionCounts(ctx, l.LabelerDID, since30d)
	if err != nil {
		return Signals{}, err
	}

	var recentClassChangeHoursAgo *float64
	if lastChangeTS, ok, err := e.store.LastRegimeChangeTS(ctx, l.LabelerDID); err != nil {
		return Signals{}, err
	} else if ok {
		if t, err := parseTS(lastChangeTS); err == nil {
			h := now.Sub(t).Hours()
			recentClassChangeHoursAgo = &h
		}
	}

	firstSeenHours := 0.0
	if l.FirstSeen != "" {
		if t, err := parseTS(l.FirstSeen); err == nil {
			firstSeenHours = now.Sub(t).Hours()
			if firstSeenHours < 0 {
				firstSeenHours = 0
			}
		}
	}

	visibility := l.VisibilityClass
	if visibility == "" {
		visibility = "unresolved"
	}
	auditability := l.Auditability
	if auditability == "" {
		auditability = "low"
	}
	confidence := l.ClassificationConfidence
	if confidence == "" {
		confidence = "low"
	}

	return Signals{
		LabelerDID:               l.LabelerDID,
		VisibilityClass:          visibility,
		Auditability:             auditability,
		ClassificationConfidence: confidence,
		LikelyTestDev:            l.LikelyTestDev,

		FirstSeenHoursAgo: firstSeenHours,
		ScanCount:         l.ScanCount,
		EventCountTotal:   totalAll,

		WarmupEnabled:     e.cfg.WarmupEnabled,
		WarmupMinAgeHours: e.cfg.WarmupMinAgeHours,
		WarmupMinEvents:   e.cfg.WarmupMinEvents,
		WarmupMinScans:    e.cfg.WarmupMinScans,

		EventCount24h: total24h,
		EventCount7d:  total7d,
		EventCount30d: total30d,

		HourlyCounts7d:     hourlyCounts,
		InterarrivalSecs7d: interarrival,
		DormancyDays:       dormancyDays,

		ProbeCount30d:           probeStats.Count30d,
		ProbeSuccessRatio30d:    probeStats.SuccessRatio30d,
		ProbeTransitionCount30d: probeStats.TransitionCount30d,
		ProbeLastStatus:         l.EndpointStatus,
		ProbeStatuses7d:         probeStats.Statuses7d,
		ProbeRecentFailStreak:   probeStats.RecentFailStreak,

		ClassTransitionCount30d:      regimeCount,
		ConfidenceTransitionCount30d: inferenceCount,
		RecentClassChangeHoursAgo:    recentClassChangeHoursAgo,

		DeclaredRecord:    l.DeclaredRecord,
		HasLabelerService: l.HasLabelerService,
		HasLabelKey:       l.HasLabelKey,
		ObservedAsSrc:     l.ObservedAsSrc,
	}, nil
}

func (e *Engine) emitReceiptIfChanged(ctx context.Context, labelerDID, receiptType, prevValue, newValue string, reasonCodes []string, inputHash, ts string) error {
	if prevValue == newValue {
		return nil
	}
	reasonJSON := reasonsJSON(reasonCodes)
	return e.store.InsertDerivedReceipt(ctx, store.DerivedReceipt{
		LabelerDID:        labelerDID,
		ReceiptType:       receiptType,
		DerivationVersion: Version,
		Trigger:           "scan",
		TS:                ts,
		InputHash:         inputHash,
		PreviousJSON:      prevValue,
		NewJSON:           newValue,
		ReasonCodesJSON:   reasonJSON,
	})
}

func reasonsJSON(reasons []string) string {
	if reasons == nil {
		reasons = []string{}
	}
	b, _ := json.Marshal(reasons)
	return string(b)
}

func intPtrToStr(v *int) string {
	if v == nil {
		return ""
	}
	return itoa(*v)
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int(v*mult+0.5)) / mult
}
