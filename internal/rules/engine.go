package rules

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/canonicalize"
	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/receipts"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// Engine owns the store queries and per-cycle caches the five rule
// functions consume, mirroring rules.py's run_rules: build the
// event-count and coverage caches once per cycle (one query each
// instead of one per labeler), then run every rule against every
// labeler.
type Engine struct {
	store *store.Store
	cfg   *config.Config
}

// NewEngine builds a rule Engine bound to a store and configuration.
func NewEngine(st *store.Store, cfg *config.Config) *Engine {
	return &Engine{store: st, cfg: cfg}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Run evaluates all five rules against every known labeler, persists
// any resulting alerts as hashed receipts, and returns the fired
// alerts for callers that want to act on them immediately (e.g. a
// CLI's exit-code-on-alert behavior).
func (e *Engine) Run(ctx context.Context, now time.Time) ([]Alert, error) {
	now = now.UTC()

	eventCache, err := e.store.TotalEventCountsByLabeler(ctx)
	if err != nil {
		return nil, err
	}
	covWindowStart := formatTS(now.Add(-time.Duration(e.cfg.CoverageWindowMinutes) * time.Minute))
	covCache, err := e.store.CoverageCacheByLabeler(ctx, covWindowStart, e.cfg.CoverageThreshold)
	if err != nil {
		return nil, err
	}

	labelers, err := e.store.ListLabelers(ctx)
	if err != nil {
		return nil, err
	}

	cfgHash, err := receipts.ConfigHash(e.cfg.ToReceiptDict())
	if err != nil {
		return nil, err
	}

	var fired []Alert
	for _, l := range labelers {
		total := eventCache[l.LabelerDID]
		cov, hasCov := covCache[l.LabelerDID]
		coverage := Coverage{Sufficient: true}
		if hasCov {
			coverage = Coverage{Ratio: cov.Ratio, Attempts: cov.Attempts, Successes: cov.Successes, Sufficient: cov.Sufficient}
		}

		ageHours := ageHours(l.FirstSeen, now)
		warmup := ComputeWarmupState(WarmupInputs{
			Enabled:      e.cfg.WarmupEnabled,
			AgeHours:     ageHours,
			ScanCount:    l.ScanCount,
			TotalEvents:  total,
			MinAgeHours:  e.cfg.WarmupMinAgeHours,
			MinScans:     e.cfg.WarmupMinScans,
			MinEvents:    e.cfg.WarmupMinEvents,
			HasFirstSeen: l.FirstSeen != "",
		})
		confidence := ConfidenceTag(total, ageHours, e.cfg.ConfidenceMinEvents, e.cfg.ConfidenceMinAgeHours)

		alerts, err := e.evaluateLabeler(ctx, l, now, warmup, confidence, coverage)
		if err != nil {
			return nil, err
		}
		fired = append(fired, alerts...)
	}

	// Data-gap is coverage-driven, not per-rule-window-driven, and runs
	// once per labeler using the same coverage cache rather than being
	// folded into evaluateLabeler's per-rule suppression loop.
	gapAlerts, err := e.runDataGap(ctx, labelers, now, covCache, eventCache)
	if err != nil {
		return nil, err
	}
	fired = append(fired, gapAlerts...)

	if err := e.persist(ctx, fired, cfgHash); err != nil {
		return nil, err
	}
	if err := e.store.IncrementScanCount(ctx); err != nil {
		return nil, err
	}

	return fired, nil
}

func ageHours(firstSeen string, now time.Time) float64 {
	if firstSeen == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, firstSeen)
	if err != nil {
		t, err = time.Parse(time.RFC3339, firstSeen)
		if err != nil {
			return 0
		}
	}
	hrs := now.Sub(t).Hours()
	if hrs < 0 {
		return 0
	}
	return hrs
}

func (e *Engine) evaluateLabeler(ctx context.Context, l store.Labeler, now time.Time, warmup WarmupState, confidence string, coverage Coverage) ([]Alert, error) {
	if !coverage.Sufficient {
		return nil, nil
	}

	var out []Alert

	if !ShouldSuppress(warmup, RuleRateSpike, e.cfg.WarmupSuppressAlerts) {
		alert, err := e.evaluateRateSpike(ctx, l, now, warmup, confidence)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			out = append(out, *alert)
		}
	}

	if !ShouldSuppress(warmup, RuleFlipFlop, e.cfg.WarmupSuppressAlerts) {
		alert, err := e.evaluateFlipFlop(ctx, l, now, warmup, confidence)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			out = append(out, *alert)
		}
	}

	if !ShouldSuppress(warmup, RuleTargetConcentration, e.cfg.WarmupSuppressAlerts) {
		alert, err := e.evaluateTargetConcentration(ctx, l, now, warmup, confidence)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			out = append(out, *alert)
		}
	}

	if !ShouldSuppress(warmup, RuleChurn, e.cfg.WarmupSuppressAlerts) {
		alert, err := e.evaluateChurn(ctx, l, now, warmup, confidence)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			out = append(out, *alert)
		}
	}

	for i := range out {
		out[i].TS = formatTS(now)
	}
	return out, nil
}

func (e *Engine) evaluateRateSpike(ctx context.Context, l store.Labeler, now time.Time, warmup WarmupState, confidence string) (*Alert, error) {
	curStart := now.Add(-time.Duration(e.cfg.WindowMinutes) * time.Minute)
	baseStart := now.Add(-time.Duration(e.cfg.BaselineHours) * time.Hour)

	curCount, err := e.store.CountEventsSince(ctx, l.LabelerDID, formatTS(curStart))
	if err != nil {
		return nil, err
	}
	// CountEventsSince is ts>=since with no upper bound, so subtract the
	// baseline-window total to isolate the baseline-only count.
	baseTotal, err := e.store.CountEventsSince(ctx, l.LabelerDID, formatTS(baseStart))
	if err != nil {
		return nil, err
	}
	baseCount := baseTotal - curCount
	if baseCount < 0 {
		baseCount = 0
	}

	evidence, err := e.store.EvidenceHashesSince(ctx, l.LabelerDID, formatTS(curStart), formatTS(now), e.cfg.MaxEvidence)
	if err != nil {
		return nil, err
	}

	return EvaluateRateSpike(RateSpikeInputs{
		LabelerDID:      l.LabelerDID,
		CurrentCount:    curCount,
		BaselineCount:   baseCount,
		WindowMinutes:   e.cfg.WindowMinutes,
		BaselineHours:   e.cfg.BaselineHours,
		IsReference:     l.IsReference,
		MinCountRef:     e.cfg.SpikeMinCountReference,
		MinCountDefault: e.cfg.SpikeMinCountDefault,
		Confidence:      confidence,
		Warmup:          warmup,
		EvidenceHashes:  evidence,
	}, e.cfg.SpikeK), nil
}

func (e *Engine) evaluateFlipFlop(ctx context.Context, l store.Labeler, now time.Time, warmup WarmupState, confidence string) (*Alert, error) {
	start := now.Add(-time.Duration(e.cfg.FlipFlopWindowHrs) * time.Hour)
	rows, err := e.store.FlipFlopCandidatesSince(ctx, l.LabelerDID, formatTS(start), formatTS(now))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	groups := map[[2]string][]FlipFlopEvent{}
	for _, r := range rows {
		key := [2]string{r.URI, r.Val}
		groups[key] = append(groups[key], FlipFlopEvent{Neg: r.Neg, TS: r.TS, EventHash: r.EventHash})
	}

	return EvaluateFlipFlop(FlipFlopInputs{
		LabelerDID:       l.LabelerDID,
		WindowHours:      e.cfg.FlipFlopWindowHrs,
		MaxEvidence:      e.cfg.MaxEvidence,
		Groups:           groups,
		MaxEventsPerScan: e.cfg.MaxEventsPerScan,
		Confidence:       confidence,
		Warmup:           warmup,
	}), nil
}

func (e *Engine) evaluateTargetConcentration(ctx context.Context, l store.Labeler, now time.Time, warmup WarmupState, confidence string) (*Alert, error) {
	start := now.Add(-time.Duration(e.cfg.ConcentrationWindowHrs) * time.Hour)
	counts, err := e.store.TargetCountsSince(ctx, l.LabelerDID, formatTS(start), formatTS(now))
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, nil
	}

	tcs := make([]TargetCount, 0, len(counts))
	for uri, c := range counts {
		tcs = append(tcs, TargetCount{URI: uri, Count: c})
	}
	sort.Slice(tcs, func(i, j int) bool { return tcs[i].URI < tcs[j].URI })

	evidence, err := e.store.EvidenceHashesSince(ctx, l.LabelerDID, formatTS(start), formatTS(now), e.cfg.MaxEvidence)
	if err != nil {
		return nil, err
	}

	return EvaluateTargetConcentration(ConcentrationInputs{
		LabelerDID:     l.LabelerDID,
		WindowHours:    e.cfg.ConcentrationWindowHrs,
		MinLabels:      e.cfg.ConcentrationMinLabels,
		Threshold:      e.cfg.ConcentrationThreshold,
		Counts:         tcs,
		EvidenceHashes: evidence,
		Confidence:     confidence,
		Warmup:         warmup,
	}), nil
}

func (e *Engine) evaluateChurn(ctx context.Context, l store.Labeler, now time.Time, warmup WarmupState, confidence string) (*Alert, error) {
	window := time.Duration(e.cfg.ChurnWindowHrs) * time.Hour
	start := now.Add(-window)
	mid := now.Add(-window / 2)

	firstHalf, err := e.store.DistinctTargetsSince(ctx, l.LabelerDID, formatTS(start), formatTS(mid))
	if err != nil {
		return nil, err
	}
	secondHalf, err := e.store.DistinctTargetsSince(ctx, l.LabelerDID, formatTS(mid), formatTS(now))
	if err != nil {
		return nil, err
	}

	toBoolMap := func(m map[string]struct{}) map[string]bool {
		out := make(map[string]bool, len(m))
		for k := range m {
			out[k] = true
		}
		return out
	}

	evidence, err := e.store.EvidenceHashesSince(ctx, l.LabelerDID, formatTS(start), formatTS(now), e.cfg.MaxEvidence)
	if err != nil {
		return nil, err
	}

	return EvaluateChurn(ChurnInputs{
		LabelerDID:     l.LabelerDID,
		WindowHours:    e.cfg.ChurnWindowHrs,
		MinTargets:     e.cfg.ChurnMinTargets,
		Threshold:      e.cfg.ChurnThreshold,
		FirstHalf:      toBoolMap(firstHalf),
		SecondHalf:     toBoolMap(secondHalf),
		EvidenceHashes: evidence,
		Confidence:     confidence,
		Warmup:         warmup,
	}), nil
}

func (e *Engine) runDataGap(ctx context.Context, labelers []store.Labeler, now time.Time, covCache map[string]store.CoverageStat, eventCache map[string]int) ([]Alert, error) {
	if len(covCache) == 0 {
		return nil, nil
	}
	var out []Alert
	for _, l := range labelers {
		cov, ok := covCache[l.LabelerDID]
		if !ok || cov.Sufficient {
			continue
		}

		warmup := ComputeWarmupState(WarmupInputs{
			Enabled:      e.cfg.WarmupEnabled,
			AgeHours:     ageHours(l.FirstSeen, now),
			ScanCount:    l.ScanCount,
			TotalEvents:  eventCache[l.LabelerDID],
			MinAgeHours:  e.cfg.WarmupMinAgeHours,
			MinScans:     e.cfg.WarmupMinScans,
			MinEvents:    e.cfg.WarmupMinEvents,
			HasFirstSeen: l.FirstSeen != "",
		})
		if warmup == WarmupWarmingUp {
			continue
		}

		lastSuccess, lastAttempt, err := e.store.LastSuccessAndAttempt(ctx, l.LabelerDID)
		if err != nil {
			return nil, err
		}

		alert := EvaluateDataGap(DataGapInputs{
			LabelerDID:        l.LabelerDID,
			Coverage:          Coverage{Ratio: cov.Ratio, Attempts: cov.Attempts, Successes: cov.Successes, Sufficient: cov.Sufficient},
			CoverageThreshold: e.cfg.CoverageThreshold,
			LastSuccessTS:     lastSuccess,
			LastAttemptTS:     lastAttempt,
			Warmup:            warmup,
		})
		if alert != nil {
			alert.TS = formatTS(now)
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (e *Engine) persist(ctx context.Context, alerts []Alert, cfgHash string) error {
	for _, a := range alerts {
		// Inputs can carry a non-finite ratio (the zero-baseline rate-spike
		// path), which plain encoding/json rejects; canonicalize.JSON
		// matches stable_json's json.dumps(allow_nan=True) instead.
		inputsJSON, err := canonicalize.JSON(a.Inputs)
		if err != nil {
			return err
		}
		evidenceJSON, err := json.Marshal(a.EvidenceHashes)
		if err != nil {
			return err
		}
		receiptHash, err := receipts.ReceiptHash(a.RuleID, a.LabelerDID, a.TS, a.Inputs, a.EvidenceHashes, cfgHash)
		if err != nil {
			return err
		}

		isWarmup := false
		if s, ok := a.Inputs["warmup"].(string); ok && s != "" {
			isWarmup = true
		}

		if err := e.store.InsertAlert(ctx, store.Alert{
			RuleID:             a.RuleID,
			LabelerDID:         a.LabelerDID,
			TS:                 a.TS,
			InputsJSON:         string(inputsJSON),
			EvidenceHashesJSON: string(evidenceJSON),
			ConfigHash:         cfgHash,
			ReceiptHash:        receiptHash,
			WarmupAlert:        isWarmup,
		}); err != nil {
			return err
		}
	}
	return nil
}
