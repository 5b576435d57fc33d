package rules

import "testing"

func TestRateSpikeTriggersOnRatioAboveThreshold(t *testing.T) {
	in := RateSpikeInputs{
		LabelerDID:      "did:plc:abc",
		CurrentCount:    100,
		BaselineCount:   60,
		WindowMinutes:   15,
		BaselineHours:   24,
		MinCountDefault: 5,
		MinCountRef:     50,
		Confidence:      "high",
		Warmup:          WarmupReady,
	}
	alert := EvaluateRateSpike(in, 10.0)
	if alert == nil {
		t.Fatal("expected alert: current rate is far above baseline rate")
	}
	if alert.RuleID != RuleRateSpike || alert.LabelerDID != "did:plc:abc" {
		t.Fatalf("unexpected alert shape: %+v", alert)
	}
}

func TestRateSpikeNoAlertBelowThreshold(t *testing.T) {
	in := RateSpikeInputs{
		CurrentCount: 10, BaselineCount: 960, WindowMinutes: 15, BaselineHours: 24,
		MinCountDefault: 5, Confidence: "high", Warmup: WarmupReady,
	}
	if alert := EvaluateRateSpike(in, 10.0); alert != nil {
		t.Fatalf("expected no alert, got %+v", alert)
	}
}

func TestRateSpikeZeroBaselineUsesMinCountFloor(t *testing.T) {
	in := RateSpikeInputs{
		CurrentCount: 4, BaselineCount: 0, WindowMinutes: 15, BaselineHours: 24,
		MinCountDefault: 5, Confidence: "high", Warmup: WarmupReady,
	}
	if alert := EvaluateRateSpike(in, 10.0); alert != nil {
		t.Fatalf("expected no alert below min_count floor, got %+v", alert)
	}

	in.CurrentCount = 5
	alert := EvaluateRateSpike(in, 10.0)
	if alert == nil {
		t.Fatal("expected alert at min_count floor with zero baseline")
	}
}

func TestRateSpikeReferenceLabelerUsesHigherFloor(t *testing.T) {
	in := RateSpikeInputs{
		CurrentCount: 10, BaselineCount: 0, WindowMinutes: 15, BaselineHours: 24,
		IsReference: true, MinCountRef: 50, MinCountDefault: 5,
		Confidence: "high", Warmup: WarmupReady,
	}
	if alert := EvaluateRateSpike(in, 10.0); alert != nil {
		t.Fatalf("expected no alert: 10 < reference floor of 50, got %+v", alert)
	}
}

func TestRateSpikeIncludesWarmupReasonWhenNotReady(t *testing.T) {
	in := RateSpikeInputs{
		CurrentCount: 5, BaselineCount: 0, WindowMinutes: 15, BaselineHours: 24,
		MinCountDefault: 5, Confidence: "low", Warmup: WarmupWarmingUp,
	}
	alert := EvaluateRateSpike(in, 10.0)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Inputs["warmup"] != "warming_up" {
		t.Fatalf("expected warmup reason in inputs, got %+v", alert.Inputs)
	}
}
