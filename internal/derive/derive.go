// Package derive computes regime state, risk scores, and temporal
// coherence from a labeler's observed signals. Every function here is
// pure — no store access, no network, no wall-clock reads — so the
// derivation engine's behavior can be fully exercised by table-driven
// and property-based tests.
//
// Ported from original_source/src/labelwatch/derive.py: the regime
// priority cascade and the three 0-100 scoring functions are carried
// over constant-for-constant, since they encode the tuned thresholds a
// reimplementation must not silently drift from.
package derive

import "math"

const Version = "v1"

// Signals is every input the derivation engine needs for one labeler.
// Built by the derivation engine's batched store queries, not by
// derive itself.
type Signals struct {
	LabelerDID string

	VisibilityClass          string
	Auditability              string
	ClassificationConfidence  string
	LikelyTestDev             bool

	FirstSeenHoursAgo float64
	ScanCount         int
	EventCountTotal   int

	WarmupEnabled     bool
	WarmupMinAgeHours int
	WarmupMinEvents   int
	WarmupMinScans    int

	EventCount24h int
	EventCount7d  int
	EventCount30d int

	HourlyCounts7d      []int
	InterarrivalSecs7d  []float64
	DormancyDays        float64

	ProbeCount30d            int
	ProbeSuccessRatio30d     float64
	ProbeTransitionCount30d  int
	ProbeLastStatus          string
	ProbeStatuses7d          []string
	ProbeRecentFailStreak    int

	ClassTransitionCount30d      int
	ConfidenceTransitionCount30d int
	RecentClassChangeHoursAgo    *float64

	DeclaredRecord     bool
	HasLabelerService  bool
	HasLabelKey        bool
	ObservedAsSrc      bool
}

// RegimeResult is the outcome of the priority cascade: a regime state
// plus the ordered reason codes that led to it.
type RegimeResult struct {
	RegimeState string
	ReasonCodes []string
}

// ScoreResult is a clamped 0-100 score with its band and reasons.
type ScoreResult struct {
	Score       int
	Band        string
	ReasonCodes []string
}

func clamp(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func band(score int) string {
	if score < 34 {
		return "low"
	}
	if score < 67 {
		return "medium"
	}
	return "high"
}

func isWarmingUp(s Signals) (bool, []string) {
	if !s.WarmupEnabled {
		return false, nil
	}
	var reasons []string
	if s.FirstSeenHoursAgo < float64(s.WarmupMinAgeHours) {
		reasons = append(reasons, "warmup_age")
	}
	if s.EventCountTotal < s.WarmupMinEvents {
		reasons = append(reasons, "warmup_low_volume")
	}
	if s.ScanCount < s.WarmupMinScans {
		reasons = append(reasons, "warmup_low_scans")
	}
	if len(reasons) > 0 {
		return true, append([]string{"warmup_active"}, reasons...)
	}
	return false, nil
}

func mixedStatuses(statuses []string) bool {
	seen := make(map[string]struct{})
	for _, s := range statuses {
		if s == "" {
			continue
		}
		seen[s] = struct{}{}
	}
	return len(seen) >= 2
}

// BurstinessIndex computes a 0-100 score from a 168-hour (or shorter)
// histogram of event counts: variance-to-mean-squared ratio scaled so
// a Poisson-flat arrival pattern scores near 0 and a single-hour spike
// scores near 100.
func BurstinessIndex(hourlyCounts []int) float64 {
	if len(hourlyCounts) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range hourlyCounts {
		sum += float64(c)
	}
	mean := sum / float64(len(hourlyCounts))
	if mean <= 0 {
		return 0.0
	}
	var variance float64
	for _, c := range hourlyCounts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(hourlyCounts))
	raw := (variance / (mean * mean)) * 25.0
	return clampFloat(raw)
}

// CadenceIrregularity computes a 0-100 score from inter-arrival gaps
// (seconds) via their coefficient of variation: regular cadence scores
// low, bursty-then-silent cadence scores high. Fewer than two usable
// gaps returns a neutral 50.0 — not enough signal to judge regularity.
func CadenceIrregularity(interarrivalSecs []float64) float64 {
	var vals []float64
	for _, v := range interarrivalSecs {
		if v > 0 {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return 50.0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if mean <= 0 {
		return 50.0
	}
	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	cv := math.Sqrt(variance) / mean
	return clampFloat(cv * 25.0)
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClassifyRegimeState runs the priority cascade described in
// SPEC_FULL.md §4.2: warm-up gate, then inactive, flapping, degraded,
// ghost_declared, dark_operational, bursty, stable, and fallbacks, in
// that exact order. Each branch is checked independently in sequence —
// it is not a scoring system, so reordering branches changes behavior.
func ClassifyRegimeState(s Signals) RegimeResult {
	if warming, reasons := isWarmingUp(s); warming {
		return RegimeResult{"warming_up", reasons}
	}

	if s.DormancyDays >= 30 && s.EventCount30d == 0 {
		reasons := []string{"dormant_30d"}
		if s.DeclaredRecord {
			reasons = append(reasons, "declared_no_recent_activity")
		}
		return RegimeResult{"inactive", reasons}
	}

	if s.ProbeTransitionCount30d >= 6 && mixedStatuses(s.ProbeStatuses7d) {
		return RegimeResult{"flapping", []string{
			"probe_flapping_30d",
			"probe_transitions_" + itoa(s.ProbeTransitionCount30d),
		}}
	}

	if s.DeclaredRecord || s.HasLabelerService {
		if s.ProbeCount30d >= 5 && s.ProbeSuccessRatio30d < 0.4 {
			reasons := []string{"probe_success_low", "declared_or_service_present"}
			if s.ProbeRecentFailStreak >= 3 {
				reasons = append(reasons, "probe_fail_streak")
			}
			return RegimeResult{"degraded", reasons}
		}
	}

	if s.DeclaredRecord && s.EventCount30d <= 2 {
		reasons := []string{"declared_low_activity"}
		switch s.ProbeLastStatus {
		case "auth_required", "down", "timeout":
			reasons = append(reasons, "probe_"+s.ProbeLastStatus)
		}
		return RegimeResult{"ghost_declared", reasons}
	}

	if s.ObservedAsSrc && !s.DeclaredRecord && !s.HasLabelerService {
		if s.EventCount7d > 0 {
			return RegimeResult{"dark_operational", []string{
				"observed_without_declaration",
				"no_labeler_service_in_did",
			}}
		}
	}

	burst := BurstinessIndex(s.HourlyCounts7d)
	if s.EventCount7d >= 10 && burst >= 65 {
		return RegimeResult{"bursty", []string{
			"high_burstiness",
			"burstiness_" + itoa(int(burst)),
		}}
	}

	if s.EventCount30d >= 20 &&
		s.ProbeSuccessRatio30d >= 0.7 &&
		s.ProbeTransitionCount30d <= 2 &&
		s.ClassTransitionCount30d <= 1 &&
		s.DormancyDays < 7 {
		return RegimeResult{"stable", []string{
			"sustained_activity", "probe_consistent", "low_class_churn",
		}}
	}

	if s.EventCount30d > 0 {
		return RegimeResult{"stable", []string{"active_no_strong_pattern"}}
	}

	return RegimeResult{"inactive", []string{"insufficient_signal"}}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

var visibilityBaseline = map[string]float64{
	"declared":         10,
	"protocol_public":  25,
	"observed_only":    70,
	"unresolved":       80,
}

var auditabilityPenalty = map[string]float64{"high": 0, "medium": 10, "low": 20}
var confidencePenaltyAudit = map[string]float64{"high": 0, "medium": 4, "low": 10}
var confidencePenaltyInfer = map[string]float64{"high": 0, "medium": 8, "low": 18}

// ScoreAuditabilityRisk computes the 0-100 auditability-risk score:
// higher means less auditable (less externally verifiable).
func ScoreAuditabilityRisk(s Signals) ScoreResult {
	score := 0.0
	var reasons []string

	vis, ok := visibilityBaseline[s.VisibilityClass]
	if !ok {
		vis = 80
	}
	score += vis
	reasons = append(reasons, "visibility_"+s.VisibilityClass)

	score += lookupOr(auditabilityPenalty, s.Auditability, 20)
	reasons = append(reasons, "auditability_"+s.Auditability)

	if !s.DeclaredRecord {
		score += 8
		reasons = append(reasons, "missing_declared_record")
	}
	if !s.HasLabelerService {
		score += 10
		reasons = append(reasons, "missing_labeler_service")
	}
	if !s.HasLabelKey {
		score += 5
		reasons = append(reasons, "missing_label_key")
	}

	if s.ProbeCount30d == 0 {
		score += 20
		reasons = append(reasons, "no_probe_history")
	} else {
		if s.ProbeSuccessRatio30d < 0.4 {
			score += 15
			reasons = append(reasons, "probe_success_low")
		} else if s.ProbeSuccessRatio30d < 0.7 {
			score += 8
			reasons = append(reasons, "probe_success_mixed")
		}
		if s.ProbeTransitionCount30d >= 6 {
			score += 12
			reasons = append(reasons, "probe_flapping_30d")
		} else if s.ProbeTransitionCount30d >= 3 {
			score += 6
			reasons = append(reasons, "probe_some_flapping")
		}
	}

	if s.VisibilityClass == "observed_only" && s.EventCount30d > 0 {
		score += 10
		reasons = append(reasons, "active_observed_only")
	}

	if warming, _ := isWarmingUp(s); warming {
		score += 5
		reasons = append(reasons, "warmup_active")
	}

	score += lookupOr(confidencePenaltyAudit, s.ClassificationConfidence, 10)
	reasons = append(reasons, "classification_confidence_"+s.ClassificationConfidence)

	final := clamp(score)
	return ScoreResult{final, band(final), reasons}
}

var inferenceRegimeAdj = map[string]float64{
	"stable": -8, "flapping": 10, "degraded": 10,
	"ghost_declared": 8, "dark_operational": 8,
	"warming_up": 0, "inactive": 0, "bursty": 0,
}

// ScoreInferenceRisk computes the 0-100 inference-risk score: higher
// means more vulnerable to inferring private information from public
// labeling activity.
func ScoreInferenceRisk(s Signals, regime RegimeResult) ScoreResult {
	score := 0.0
	var reasons []string

	if warming, _ := isWarmingUp(s); warming {
		score += 35
		reasons = append(reasons, "warmup_active")
	}

	switch {
	case s.EventCount30d == 0:
		score += 25
		reasons = append(reasons, "no_events_30d")
	case s.EventCount30d < 5:
		score += 18
		reasons = append(reasons, "very_low_volume_30d")
	case s.EventCount30d < 20:
		score += 10
		reasons = append(reasons, "low_volume_30d")
	}

	if s.ProbeCount30d == 0 {
		score += 15
		reasons = append(reasons, "no_probe_history")
	} else if s.ProbeCount30d < 5 {
		score += 8
		reasons = append(reasons, "sparse_probe_history")
	}

	if s.ProbeTransitionCount30d >= 6 {
		score += 15
		reasons = append(reasons, "probe_flapping_30d")
	} else if s.ProbeTransitionCount30d >= 3 {
		score += 8
		reasons = append(reasons, "probe_some_flapping")
	}

	if s.ClassTransitionCount30d >= 3 {
		score += 20
		reasons = append(reasons, "high_class_churn")
	} else if s.ClassTransitionCount30d >= 1 {
		score += 10
		reasons = append(reasons, "recent_class_change")
	}

	if s.ConfidenceTransitionCount30d >= 3 {
		score += 10
		reasons = append(reasons, "confidence_churn")
	} else if s.ConfidenceTransitionCount30d >= 1 {
		score += 5
		reasons = append(reasons, "confidence_changed")
	}

	score += lookupOr(confidencePenaltyInfer, s.ClassificationConfidence, 18)
	reasons = append(reasons, "classification_confidence_"+s.ClassificationConfidence)

	irr := CadenceIrregularity(s.InterarrivalSecs7d)
	if irr >= 70 {
		score += 12
		reasons = append(reasons, "cadence_irregularity_high")
	} else if irr >= 40 {
		score += 6
		reasons = append(reasons, "cadence_irregularity_medium")
	}

	score += lookupOr(inferenceRegimeAdj, regime.RegimeState, 0)
	reasons = append(reasons, "regime_"+regime.RegimeState)

	if s.LikelyTestDev {
		reasons = append(reasons, "likely_test_dev")
	}

	final := clamp(score)
	return ScoreResult{final, band(final), reasons}
}

var coherenceRegimeAdj = map[string]float64{
	"stable": 10, "bursty": -8, "flapping": -8, "degraded": -8,
	"dark_operational": -8, "ghost_declared": -6,
	"warming_up": -6, "inactive": 0,
}

// ScoreTemporalCoherence computes a 0-100 score starting from a neutral
// 50: higher means the labeler's timing behavior matches a consistent,
// expected pattern.
func ScoreTemporalCoherence(s Signals, regime RegimeResult) ScoreResult {
	score := 50.0
	var reasons []string

	switch {
	case s.EventCount30d >= 50:
		score += 20
		reasons = append(reasons, "volume_high_30d")
	case s.EventCount30d >= 20:
		score += 10
		reasons = append(reasons, "volume_good_30d")
	case s.EventCount30d < 5:
		score -= 15
		reasons = append(reasons, "volume_low_30d")
	}

	switch {
	case s.DormancyDays >= 30:
		score -= 25
		reasons = append(reasons, "dormant_30d")
	case s.DormancyDays >= 7:
		score -= 10
		reasons = append(reasons, "dormant_7d")
	}

	switch {
	case s.ProbeTransitionCount30d >= 6:
		score -= 20
		reasons = append(reasons, "probe_flapping_30d")
	case s.ProbeTransitionCount30d >= 3:
		score -= 10
		reasons = append(reasons, "probe_some_flapping")
	}

	switch {
	case s.ClassTransitionCount30d >= 3:
		score -= 15
		reasons = append(reasons, "high_class_churn")
	case s.ClassTransitionCount30d >= 1:
		score -= 8
		reasons = append(reasons, "recent_class_change")
	}

	irr := CadenceIrregularity(s.InterarrivalSecs7d)
	if irr >= 70 {
		score -= 15
		reasons = append(reasons, "cadence_irregularity_high")
	} else if irr >= 40 {
		score -= 8
		reasons = append(reasons, "cadence_irregularity_medium")
	}

	if warming, _ := isWarmingUp(s); warming {
		score -= 20
		reasons = append(reasons, "warmup_active")
	}

	score += lookupOr(coherenceRegimeAdj, regime.RegimeState, 0)
	reasons = append(reasons, "regime_"+regime.RegimeState)

	final := clamp(score)
	return ScoreResult{final, band(final), reasons}
}

func lookupOr(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}
