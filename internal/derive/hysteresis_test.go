package derive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHysteresisFirstDeriveAcceptsImmediately(t *testing.T) {
	out := ApplyHysteresis(HysteresisState{}, "stable", 2)
	require.Equal(t, "stable", out.Effective)
	require.True(t, out.EffectiveIsComputed)
	require.Equal(t, HysteresisState{Current: "stable"}, out.Next)
}

func TestHysteresisSteadyStateClearsPending(t *testing.T) {
	state := HysteresisState{Current: "stable", Pending: "bursty", PendingCount: 1}
	out := ApplyHysteresis(state, "stable", 2)
	require.Equal(t, "stable", out.Effective)
	require.Equal(t, HysteresisState{Current: "stable"}, out.Next)
}

func TestHysteresisHoldsUntilThreshold(t *testing.T) {
	state := HysteresisState{Current: "stable"}

	out1 := ApplyHysteresis(state, "bursty", 2)
	require.Equal(t, "stable", out1.Effective, "first proposal is held, not applied")
	require.Equal(t, "bursty", out1.Next.Pending)
	require.Equal(t, 1, out1.Next.PendingCount)

	out2 := ApplyHysteresis(out1.Next, "bursty", 2)
	require.Equal(t, "bursty", out2.Effective, "second consecutive proposal reaches threshold")
	require.Equal(t, HysteresisState{Current: "bursty"}, out2.Next)
}

func TestHysteresisDifferentProposalResetsCounter(t *testing.T) {
	state := HysteresisState{Current: "stable", Pending: "bursty", PendingCount: 1}
	out := ApplyHysteresis(state, "flapping", 2)
	require.Equal(t, "stable", out.Effective)
	require.Equal(t, "flapping", out.Next.Pending)
	require.Equal(t, 1, out.Next.PendingCount)
}
