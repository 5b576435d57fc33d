package rules

import "math"

// RateSpikeInputs is everything label_rate_spike needs for one
// labeler, pre-fetched by Engine.
type RateSpikeInputs struct {
	LabelerDID       string
	CurrentCount     int
	BaselineCount    int
	WindowMinutes    int
	BaselineHours    int
	IsReference      bool
	MinCountRef      int
	MinCountDefault  int
	Confidence       string
	Warmup           WarmupState
	EvidenceHashes   []string
}

// EvaluateRateSpike implements rules.py's label_rate_spike: compare the
// current window's per-minute rate against the trailing baseline's
// per-minute rate. Below a baseline floor, fall back to an absolute
// minimum-count threshold (two-tier: reference labelers get a higher
// bar since they're expected to be high-volume).
func EvaluateRateSpike(in RateSpikeInputs, spikeK float64) *Alert {
	curRate := float64(in.CurrentCount) / math.Max(float64(in.WindowMinutes), 1)
	baseMinutes := math.Max(float64(in.BaselineHours*60-in.WindowMinutes), 1)
	baseRate := float64(in.BaselineCount) / baseMinutes

	minCount := in.MinCountDefault
	if in.IsReference {
		minCount = in.MinCountRef
	}

	var ratio float64
	var triggered bool
	if baseRate > 0 {
		ratio = curRate / baseRate
		triggered = ratio >= spikeK
	} else {
		if in.CurrentCount > 0 {
			ratio = math.Inf(1)
		} else {
			ratio = 0.0
		}
		triggered = in.CurrentCount >= minCount
	}

	if !triggered {
		return nil
	}

	inputs := map[string]interface{}{
		"current_count":          in.CurrentCount,
		"baseline_count":         in.BaselineCount,
		"current_rate_per_min":   curRate,
		"baseline_rate_per_min":  baseRate,
		"ratio":                  ratio,
		"window_minutes":         in.WindowMinutes,
		"baseline_hours":         in.BaselineHours,
		"is_reference":           in.IsReference,
		"min_current_count_used": minCount,
		"confidence":             in.Confidence,
	}
	if in.Warmup != WarmupReady {
		inputs["warmup"] = string(in.Warmup)
	}

	return &Alert{
		RuleID:         RuleRateSpike,
		LabelerDID:     in.LabelerDID,
		Inputs:         inputs,
		EvidenceHashes: in.EvidenceHashes,
	}
}
