package rules

import "testing"

func TestTargetConcentrationTriggersOnHighHHI(t *testing.T) {
	in := ConcentrationInputs{
		LabelerDID:  "did:plc:x",
		WindowHours: 24,
		MinLabels:   20,
		Threshold:   0.25,
		Counts: []TargetCount{
			{URI: "a", Count: 90},
			{URI: "b", Count: 5},
			{URI: "c", Count: 5},
		},
		Confidence: "high", Warmup: WarmupReady,
	}
	alert := EvaluateTargetConcentration(in)
	if alert == nil {
		t.Fatal("expected alert: one target dominates 90% of labels")
	}
	if alert.Inputs["top_target_count"] != 90 {
		t.Fatalf("expected top_target_count 90, got %+v", alert.Inputs)
	}
}

func TestTargetConcentrationNoAlertBelowMinLabels(t *testing.T) {
	in := ConcentrationInputs{
		Counts:    []TargetCount{{URI: "a", Count: 10}},
		MinLabels: 20, Threshold: 0.25,
		Confidence: "high", Warmup: WarmupReady,
	}
	if alert := EvaluateTargetConcentration(in); alert != nil {
		t.Fatalf("expected no alert below min_labels, got %+v", alert)
	}
}

func TestTargetConcentrationNoAlertWhenEvenlySpread(t *testing.T) {
	counts := make([]TargetCount, 0, 25)
	for i := 0; i < 25; i++ {
		counts = append(counts, TargetCount{URI: string(rune('a' + i)), Count: 4})
	}
	in := ConcentrationInputs{
		Counts: counts, MinLabels: 20, Threshold: 0.25,
		Confidence: "high", Warmup: WarmupReady,
	}
	if alert := EvaluateTargetConcentration(in); alert != nil {
		t.Fatalf("expected no alert: evenly spread across 25 targets, got %+v", alert)
	}
}
