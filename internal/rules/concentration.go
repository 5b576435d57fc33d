package rules

import "sort"

// TargetCount is one target URI's label count within a window.
type TargetCount struct {
	URI   string
	Count int
}

// ConcentrationInputs is everything target_concentration needs for one
// labeler.
type ConcentrationInputs struct {
	LabelerDID     string
	WindowHours    int
	MinLabels      int
	Threshold      float64
	Counts         []TargetCount
	EvidenceHashes []string
	Confidence     string
	Warmup         WarmupState
}

// EvaluateTargetConcentration implements rules.py's
// target_concentration: the Herfindahl-Hirschman Index over per-target
// label share within a window. A labeler fixated on very few targets
// produces a high HHI (max 1.0, one target getting everything); a
// labeler spreading labels evenly produces a low one.
func EvaluateTargetConcentration(in ConcentrationInputs) *Alert {
	if len(in.Counts) == 0 {
		return nil
	}
	total := 0
	for _, c := range in.Counts {
		total += c.Count
	}
	if total < in.MinLabels {
		return nil
	}

	hhi := 0.0
	for _, c := range in.Counts {
		share := float64(c.Count) / float64(total)
		hhi += share * share
	}
	if hhi < in.Threshold {
		return nil
	}

	sorted := append([]TargetCount(nil), in.Counts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	topCount := 0
	if len(sorted) > 0 {
		topCount = sorted[0].Count
	}

	inputs := map[string]interface{}{
		"hhi":               roundTo(hhi, 6),
		"total_labels":      total,
		"unique_targets":    len(in.Counts),
		"top_target_count":  topCount,
		"window_hours":      in.WindowHours,
		"confidence":        in.Confidence,
	}
	if in.Warmup != WarmupReady {
		inputs["warmup"] = string(in.Warmup)
	}

	return &Alert{
		RuleID:         RuleTargetConcentration,
		LabelerDID:     in.LabelerDID,
		Inputs:         inputs,
		EvidenceHashes: in.EvidenceHashes,
	}
}
