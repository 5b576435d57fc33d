package derive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// baseSignals mirrors test_derive.py's _base_signals(): a mature,
// stable, well-observed labeler baseline that every test case mutates
// a single field of.
func baseSignals() Signals {
	hourly := make([]int, 168)
	for i := range hourly {
		hourly[i] = 1
	}
	interarrival := make([]float64, 100)
	for i := range interarrival {
		interarrival[i] = 3600.0
	}
	statuses := make([]string, 7)
	for i := range statuses {
		statuses[i] = "accessible"
	}

	return Signals{
		LabelerDID:               "did:plc:testlabeler123",
		VisibilityClass:          "declared",
		Auditability:             "high",
		ClassificationConfidence: "high",
		LikelyTestDev:            false,
		FirstSeenHoursAgo:        24.0 * 14,
		ScanCount:                10,
		EventCountTotal:          250,
		WarmupEnabled:            true,
		WarmupMinAgeHours:        48,
		WarmupMinEvents:          20,
		WarmupMinScans:           3,
		EventCount24h:            4,
		EventCount7d:             28,
		EventCount30d:            80,
		HourlyCounts7d:           hourly,
		InterarrivalSecs7d:       interarrival,
		DormancyDays:             0.5,
		ProbeCount30d:            20,
		ProbeSuccessRatio30d:     0.95,
		ProbeTransitionCount30d:  1,
		ProbeLastStatus:          "accessible",
		ProbeStatuses7d:          statuses,
		ProbeRecentFailStreak:    0,
		DeclaredRecord:           true,
		HasLabelerService:        true,
		HasLabelKey:              true,
		ObservedAsSrc:            true,
	}
}

func TestRegimeWarmupGateReasons(t *testing.T) {
	cases := []struct {
		mutate func(*Signals)
		reason string
	}{
		{func(s *Signals) { s.FirstSeenHoursAgo = 12 }, "warmup_age"},
		{func(s *Signals) { s.EventCountTotal = 19 }, "warmup_low_volume"},
		{func(s *Signals) { s.ScanCount = 2 }, "warmup_low_scans"},
	}
	for _, tc := range cases {
		s := baseSignals()
		tc.mutate(&s)
		got := ClassifyRegimeState(s)
		require.Equal(t, "warming_up", got.RegimeState)
		require.Contains(t, got.ReasonCodes, tc.reason)
	}
}

func TestRegimeInactiveEdgeAt30Days(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.DormancyDays = 30
	s.EventCount30d = 0
	got := ClassifyRegimeState(s)
	require.Equal(t, "inactive", got.RegimeState)
	require.Contains(t, got.ReasonCodes, "dormant_30d")
	require.Contains(t, got.ReasonCodes, "declared_no_recent_activity")
}

func TestRegimeFlappingRequiresTransitionsAndMixedStatuses(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.ProbeTransitionCount30d = 6
	s.ProbeStatuses7d = []string{"accessible", "down", "accessible", "down", "accessible", "down", "accessible"}
	got := ClassifyRegimeState(s)
	require.Equal(t, "flapping", got.RegimeState)

	// Same transition count but uniform statuses must not trigger flapping.
	s2 := baseSignals()
	s2.WarmupEnabled = false
	s2.ProbeTransitionCount30d = 6
	got2 := ClassifyRegimeState(s2)
	require.NotEqual(t, "flapping", got2.RegimeState)
}

func TestRegimeDegradedProbeSuccessThreshold(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.ProbeCount30d = 5
	s.ProbeSuccessRatio30d = 0.39
	s.ProbeRecentFailStreak = 3
	got := ClassifyRegimeState(s)
	require.Equal(t, "degraded", got.RegimeState)
	require.Contains(t, got.ReasonCodes, "probe_fail_streak")
}

func TestRegimeGhostDeclaredThreshold(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.ProbeCount30d = 0 // avoid tripping the degraded branch first
	s.EventCount30d = 2
	s.ProbeLastStatus = "down"
	got := ClassifyRegimeState(s)
	require.Equal(t, "ghost_declared", got.RegimeState)
	require.Contains(t, got.ReasonCodes, "probe_down")
}

func TestRegimeDarkOperationalRequiresObservedWithoutDeclaration(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.DeclaredRecord = false
	s.HasLabelerService = false
	s.ObservedAsSrc = true
	s.EventCount7d = 5
	got := ClassifyRegimeState(s)
	require.Equal(t, "dark_operational", got.RegimeState)
}

func TestRegimeBurstyThreshold(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.DeclaredRecord = false
	s.HasLabelerService = false
	s.ObservedAsSrc = false
	s.EventCount7d = 12
	hourly := make([]int, 168)
	hourly[0] = 50 // concentrate into one bucket to drive burstiness high
	s.HourlyCounts7d = hourly
	got := ClassifyRegimeState(s)
	require.Equal(t, "bursty", got.RegimeState)
}

func TestRegimeStableStrongCase(t *testing.T) {
	s := baseSignals()
	got := ClassifyRegimeState(s)
	require.Equal(t, "stable", got.RegimeState)
	require.Contains(t, got.ReasonCodes, "sustained_activity")
}

func TestRegimeFallbackInactiveInsufficientSignal(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.DeclaredRecord = false
	s.HasLabelerService = false
	s.ObservedAsSrc = false
	s.EventCount30d = 0
	s.EventCount7d = 0
	s.DormancyDays = 1
	got := ClassifyRegimeState(s)
	require.Equal(t, "inactive", got.RegimeState)
	require.Contains(t, got.ReasonCodes, "insufficient_signal")
}

func TestAuditabilityRiskDeclaredWellProbedIsLow(t *testing.T) {
	s := baseSignals()
	got := ScoreAuditabilityRisk(s)
	require.Equal(t, "low", got.Band)
	require.Less(t, got.Score, 34)
}

func TestAuditabilityRiskObservedOnlyActiveClampsHigh(t *testing.T) {
	s := baseSignals()
	s.VisibilityClass = "observed_only"
	s.Auditability = "low"
	s.DeclaredRecord = false
	s.HasLabelerService = false
	s.HasLabelKey = false
	s.ProbeCount30d = 0
	s.ClassificationConfidence = "low"
	got := ScoreAuditabilityRisk(s)
	require.Equal(t, 100, got.Score)
	require.Equal(t, "high", got.Band)
}

func TestAuditabilityRiskWarmupAddsFive(t *testing.T) {
	without := baseSignals()
	without.WarmupEnabled = false
	withWarmup := baseSignals()
	withWarmup.FirstSeenHoursAgo = 1

	scoreWithout := ScoreAuditabilityRisk(without)
	scoreWith := ScoreAuditabilityRisk(withWarmup)
	require.Equal(t, scoreWithout.Score+5, scoreWith.Score)
	require.Contains(t, scoreWith.ReasonCodes, "warmup_active")
}

func TestInferenceRiskLikelyTestDevAddsReasonNotScore(t *testing.T) {
	without := baseSignals()
	withTestDev := baseSignals()
	withTestDev.LikelyTestDev = true

	regime := ClassifyRegimeState(without)
	scoreWithout := ScoreInferenceRisk(without, regime)
	scoreWith := ScoreInferenceRisk(withTestDev, regime)

	require.Equal(t, scoreWithout.Score, scoreWith.Score)
	require.Contains(t, scoreWith.ReasonCodes, "likely_test_dev")
	require.NotContains(t, scoreWithout.ReasonCodes, "likely_test_dev")
}

func TestInferenceRiskRegimeAdjustmentStableVsFlapping(t *testing.T) {
	s := baseSignals()
	stable := ScoreInferenceRisk(s, RegimeResult{RegimeState: "stable"})
	flapping := ScoreInferenceRisk(s, RegimeResult{RegimeState: "flapping"})
	require.Equal(t, 18, flapping.Score-stable.Score)
}

func TestTemporalCoherenceStableHighVolumeIsHigh(t *testing.T) {
	s := baseSignals()
	regime := ClassifyRegimeState(s)
	got := ScoreTemporalCoherence(s, regime)
	require.Equal(t, "high", got.Band)
}

func TestTemporalCoherenceBadCaseClampsLow(t *testing.T) {
	s := baseSignals()
	s.WarmupEnabled = false
	s.EventCount30d = 0
	s.DormancyDays = 45
	s.ProbeTransitionCount30d = 8
	s.ClassTransitionCount30d = 5
	s.InterarrivalSecs7d = []float64{1, 500, 2, 9000, 3, 12000}
	got := ScoreTemporalCoherence(s, RegimeResult{RegimeState: "flapping"})
	require.Equal(t, 0, got.Score)
	require.Equal(t, "low", got.Band)
}

func TestBurstinessIndexFlatHistogramIsZero(t *testing.T) {
	hourly := make([]int, 168)
	for i := range hourly {
		hourly[i] = 5
	}
	require.Equal(t, 0.0, BurstinessIndex(hourly))
}

func TestBurstinessIndexEmptyIsZero(t *testing.T) {
	require.Equal(t, 0.0, BurstinessIndex(nil))
}

func TestCadenceIrregularityTooFewGapsIsNeutral(t *testing.T) {
	require.Equal(t, 50.0, CadenceIrregularity([]float64{100}))
	require.Equal(t, 50.0, CadenceIrregularity(nil))
}

func TestCadenceIrregularityRegularCadenceIsLow(t *testing.T) {
	gaps := make([]float64, 50)
	for i := range gaps {
		gaps[i] = 3600
	}
	require.Equal(t, 0.0, CadenceIrregularity(gaps))
}
