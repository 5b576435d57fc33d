package rules

import "testing"

func TestComputeWarmupStateDisabledIsAlwaysReady(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{Enabled: false})
	if got != WarmupReady {
		t.Fatalf("expected ready, got %s", got)
	}
}

func TestComputeWarmupStateNoFirstSeenIsWarmingUp(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{Enabled: true, HasFirstSeen: false})
	if got != WarmupWarmingUp {
		t.Fatalf("expected warming_up, got %s", got)
	}
}

func TestComputeWarmupStateTooYoungIsWarmingUp(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{
		Enabled: true, HasFirstSeen: true, AgeHours: 10, MinAgeHours: 48,
	})
	if got != WarmupWarmingUp {
		t.Fatalf("expected warming_up, got %s", got)
	}
}

func TestComputeWarmupStateTooFewScansIsWarmingUp(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{
		Enabled: true, HasFirstSeen: true, AgeHours: 100, MinAgeHours: 48,
		ScanCount: 1, MinScans: 3,
	})
	if got != WarmupWarmingUp {
		t.Fatalf("expected warming_up, got %s", got)
	}
}

func TestComputeWarmupStateLowVolumeIsSparse(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{
		Enabled: true, HasFirstSeen: true, AgeHours: 100, MinAgeHours: 48,
		ScanCount: 5, MinScans: 3, TotalEvents: 2, MinEvents: 20,
	})
	if got != WarmupSparse {
		t.Fatalf("expected sparse, got %s", got)
	}
}

func TestComputeWarmupStateReadyWhenAllThresholdsMet(t *testing.T) {
	got := ComputeWarmupState(WarmupInputs{
		Enabled: true, HasFirstSeen: true, AgeHours: 100, MinAgeHours: 48,
		ScanCount: 5, MinScans: 3, TotalEvents: 50, MinEvents: 20,
	})
	if got != WarmupReady {
		t.Fatalf("expected ready, got %s", got)
	}
}

func TestConfidenceTagRequiresBothEventsAndAge(t *testing.T) {
	if ConfidenceTag(50, 10, 100, 168) != "low" {
		t.Fatal("expected low: events below minimum")
	}
	if ConfidenceTag(200, 10, 100, 168) != "low" {
		t.Fatal("expected low: age below minimum")
	}
	if ConfidenceTag(200, 200, 100, 168) != "high" {
		t.Fatal("expected high: both thresholds met")
	}
}

func TestShouldSuppressWarmingUpRespectsConfigFlag(t *testing.T) {
	if !ShouldSuppress(WarmupWarmingUp, RuleRateSpike, true) {
		t.Fatal("expected suppression when warmup_suppress_alerts is true")
	}
	if ShouldSuppress(WarmupWarmingUp, RuleRateSpike, false) {
		t.Fatal("expected no suppression when warmup_suppress_alerts is false")
	}
}

func TestShouldSuppressSparseOnlyAffectsRateBasedRules(t *testing.T) {
	if !ShouldSuppress(WarmupSparse, RuleRateSpike, true) {
		t.Fatal("expected rate_spike suppressed while sparse")
	}
	if !ShouldSuppress(WarmupSparse, RuleChurn, true) {
		t.Fatal("expected churn_index suppressed while sparse")
	}
	if ShouldSuppress(WarmupSparse, RuleFlipFlop, true) {
		t.Fatal("expected flip_flop NOT suppressed while sparse")
	}
	if ShouldSuppress(WarmupSparse, RuleTargetConcentration, true) {
		t.Fatal("expected target_concentration NOT suppressed while sparse")
	}
	if ShouldSuppress(WarmupSparse, RuleDataGap, true) {
		t.Fatal("expected data_gap NOT suppressed while sparse")
	}
}

func TestShouldSuppressReadyNeverSuppresses(t *testing.T) {
	for _, rule := range []string{RuleRateSpike, RuleFlipFlop, RuleTargetConcentration, RuleChurn, RuleDataGap} {
		if ShouldSuppress(WarmupReady, rule, true) {
			t.Fatalf("expected no suppression once ready, rule=%s", rule)
		}
	}
}
