package rules

// ChurnInputs is everything churn_index needs for one labeler: the
// distinct target-URI sets of the window's two adjacent halves,
// pre-fetched by Engine.
type ChurnInputs struct {
	LabelerDID     string
	WindowHours    int
	MinTargets     int
	Threshold      float64
	FirstHalf      map[string]bool
	SecondHalf     map[string]bool
	EvidenceHashes []string
	Confidence     string
	Warmup         WarmupState
}

// EvaluateChurn implements rules.py's churn_index: the Jaccard
// distance between the target-URI sets of a window's first and second
// half. A labeler whose targets drift almost completely between halves
// produces a distance near 1.0; a stable one near 0.0.
func EvaluateChurn(in ChurnInputs) *Alert {
	union := map[string]bool{}
	for u := range in.FirstHalf {
		union[u] = true
	}
	for u := range in.SecondHalf {
		union[u] = true
	}
	if len(union) < in.MinTargets {
		return nil
	}

	intersection := 0
	for u := range in.FirstHalf {
		if in.SecondHalf[u] {
			intersection++
		}
	}

	jaccardDistance := 1.0 - float64(intersection)/float64(len(union))
	if jaccardDistance < in.Threshold {
		return nil
	}

	inputs := map[string]interface{}{
		"jaccard_distance":     roundTo(jaccardDistance, 6),
		"first_half_targets":   len(in.FirstHalf),
		"second_half_targets":  len(in.SecondHalf),
		"intersection":         intersection,
		"union":                len(union),
		"window_hours":         in.WindowHours,
		"confidence":           in.Confidence,
	}
	if in.Warmup != WarmupReady {
		inputs["warmup"] = string(in.Warmup)
	}

	return &Alert{
		RuleID:         RuleChurn,
		LabelerDID:     in.LabelerDID,
		Inputs:         inputs,
		EvidenceHashes: in.EvidenceHashes,
	}
}
