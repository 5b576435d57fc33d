package rules

// FlipFlopEvent is one (uri,val) grouped label event, ordered by ts,
// pre-fetched by Engine.
type FlipFlopEvent struct {
	Neg       bool
	TS        string
	EventHash string
}

// FlipFlopInputs is everything flip_flop needs for one labeler.
type FlipFlopInputs struct {
	LabelerDID  string
	WindowHours int
	MaxEvidence int
	// Groups is keyed by (uri, val); events within each group are
	// already ordered by ts as rules.py's query requires.
	Groups            map[[2]string][]FlipFlopEvent
	MaxEventsPerScan  int
	Confidence        string
	Warmup            WarmupState
}

// EvaluateFlipFlop implements rules.py's flip_flop: within each
// (uri,val) group, walks an apply(0) -> neg(1) -> apply(2) state
// machine, counting every completed apply->neg->apply chain as one
// flip-flop and collecting its three event hashes as evidence.
func EvaluateFlipFlop(in FlipFlopInputs) *Alert {
	var matchHashes []string
	flipFlopCount := 0

outer:
	for _, events := range in.Groups {
		state := 0
		var chain []FlipFlopEvent
		for _, ev := range events {
			switch {
			case state == 0 && !ev.Neg:
				state = 1
				chain = []FlipFlopEvent{ev}
			case state == 1 && ev.Neg:
				state = 2
				chain = append(chain, ev)
			case state == 2 && !ev.Neg:
				chain = append(chain, ev)
				flipFlopCount++
				for _, c := range chain {
					matchHashes = append(matchHashes, c.EventHash)
				}
				state = 0
				chain = nil
			}
		}
		if flipFlopCount >= in.MaxEventsPerScan {
			break outer
		}
	}

	if flipFlopCount == 0 {
		return nil
	}

	evidenceHashes := matchHashes
	if len(evidenceHashes) > in.MaxEvidence {
		evidenceHashes = evidenceHashes[:in.MaxEvidence]
	}

	inputs := map[string]interface{}{
		"flip_flop_count": flipFlopCount,
		"window_hours":    in.WindowHours,
		"confidence":      in.Confidence,
	}
	if in.Warmup != WarmupReady {
		inputs["warmup"] = string(in.Warmup)
	}

	return &Alert{
		RuleID:         RuleFlipFlop,
		LabelerDID:     in.LabelerDID,
		Inputs:         inputs,
		EvidenceHashes: evidenceHashes,
	}
}
