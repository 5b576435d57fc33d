package rules

// WarmupInputs is the subset of labeler/config state needed to compute
// a labeler's warmup gating state.
type WarmupInputs struct {
	Enabled       bool
	AgeHours      float64
	ScanCount     int
	TotalEvents   int
	MinAgeHours   int
	MinScans      int
	MinEvents     int
	HasFirstSeen  bool
}

// ComputeWarmupState implements original rules.py's _warmup_state:
// "ready" once a labeler is old enough, has been scanned enough times,
// and has enough total event volume for rate-based statistics to be
// meaningful; "warming_up" if age or scan count fall short; "sparse" if
// age/scans are fine but volume is still too low.
func ComputeWarmupState(in WarmupInputs) WarmupState {
	if !in.Enabled {
		return WarmupReady
	}
	if !in.HasFirstSeen {
		return WarmupWarmingUp
	}
	if in.AgeHours < float64(in.MinAgeHours) {
		return WarmupWarmingUp
	}
	if in.ScanCount < in.MinScans {
		return WarmupWarmingUp
	}
	if in.TotalEvents < in.MinEvents {
		return WarmupSparse
	}
	return WarmupReady
}

// ConfidenceTag reports "high" once a labeler has enough total events
// and enough age for alert inputs to be considered well-supported,
// "low" otherwise. Matches rules.py's _confidence_tag.
func ConfidenceTag(totalEvents int, ageHours float64, minEvents, minAgeHours int) string {
	if totalEvents >= minEvents && ageHours >= float64(minAgeHours) {
		return "high"
	}
	return "low"
}
