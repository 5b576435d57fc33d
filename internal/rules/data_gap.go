package rules

// DataGapInputs is everything data_gap needs for one labeler.
type DataGapInputs struct {
	LabelerDID       string
	Coverage         Coverage
	CoverageThreshold float64
	LastSuccessTS    *string
	LastAttemptTS    *string
	Warmup           WarmupState
}

// EvaluateDataGap implements rules.py's data_gap: fires when a
// labeler's rolling ingest coverage is below threshold, unless the
// labeler is still in its initial warmup (too new to say anything
// meaningful about its ingest reliability yet). Unlike the other four
// rules, this one is driven entirely by ingest coverage, not
// label-event content, so it carries no evidence hashes.
func EvaluateDataGap(in DataGapInputs) *Alert {
	if in.Coverage.Sufficient {
		return nil
	}
	if in.Warmup == WarmupWarmingUp {
		return nil
	}

	inputs := map[string]interface{}{
		"coverage_ratio":      roundTo(in.Coverage.Ratio, 4),
		"coverage_attempts":   in.Coverage.Attempts,
		"coverage_successes":  in.Coverage.Successes,
		"coverage_threshold":  in.CoverageThreshold,
		"last_success_ts":     orNil(in.LastSuccessTS),
		"last_attempt_ts":     orNil(in.LastAttemptTS),
	}

	return &Alert{
		RuleID:         RuleDataGap,
		LabelerDID:     in.LabelerDID,
		Inputs:         inputs,
		EvidenceHashes: []string{},
	}
}

func orNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
