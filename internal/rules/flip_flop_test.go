package rules

import "testing"

func TestFlipFlopDetectsApplyNegApplyChain(t *testing.T) {
	groups := map[[2]string][]FlipFlopEvent{
		{"at://did:plc:x/app.bsky.feed.post/1", "spam"}: {
			{Neg: false, TS: "t1", EventHash: "h1"},
			{Neg: true, TS: "t2", EventHash: "h2"},
			{Neg: false, TS: "t3", EventHash: "h3"},
		},
	}
	alert := EvaluateFlipFlop(FlipFlopInputs{
		LabelerDID: "did:plc:x", WindowHours: 24, MaxEvidence: 50,
		Groups: groups, MaxEventsPerScan: 200000,
		Confidence: "high", Warmup: WarmupReady,
	})
	if alert == nil {
		t.Fatal("expected a flip-flop alert")
	}
	if len(alert.EvidenceHashes) == 0 {
		t.Fatal("MaxEvidence was set to 50, evidence should not be truncated to zero")
	}
	if alert.Inputs["flip_flop_count"] != 1 {
		t.Fatalf("expected count 1, got %+v", alert.Inputs)
	}
	if len(alert.EvidenceHashes) != 3 {
		t.Fatalf("expected 3 evidence hashes (the full chain), got %v", alert.EvidenceHashes)
	}
}

func TestFlipFlopNoAlertWithoutCompleteChain(t *testing.T) {
	groups := map[[2]string][]FlipFlopEvent{
		{"uri", "val"}: {
			{Neg: false, TS: "t1", EventHash: "h1"},
			{Neg: true, TS: "t2", EventHash: "h2"},
		},
	}
	alert := EvaluateFlipFlop(FlipFlopInputs{
		LabelerDID: "did:plc:x", Groups: groups, MaxEventsPerScan: 200000,
		Confidence: "high", Warmup: WarmupReady,
	})
	if alert != nil {
		t.Fatalf("expected no alert: chain never returns to apply, got %+v", alert)
	}
}

func TestFlipFlopCountsMultipleChainsInSameGroup(t *testing.T) {
	groups := map[[2]string][]FlipFlopEvent{
		{"uri", "val"}: {
			{Neg: false, TS: "t1", EventHash: "h1"},
			{Neg: true, TS: "t2", EventHash: "h2"},
			{Neg: false, TS: "t3", EventHash: "h3"},
			{Neg: true, TS: "t4", EventHash: "h4"},
			{Neg: false, TS: "t5", EventHash: "h5"},
		},
	}
	alert := EvaluateFlipFlop(FlipFlopInputs{
		LabelerDID: "did:plc:x", Groups: groups, MaxEvidence: 50, MaxEventsPerScan: 200000,
		Confidence: "high", Warmup: WarmupReady,
	})
	if alert == nil || alert.Inputs["flip_flop_count"] != 2 {
		t.Fatalf("expected 2 chains, got %+v", alert)
	}
}
