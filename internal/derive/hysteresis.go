package derive

// HysteresisState is the sticky regime-transition state a labeler row
// persists between derivation passes: the currently effective regime,
// a pending candidate regime, and how many consecutive passes have
// proposed that candidate.
type HysteresisState struct {
	Current      string
	Pending      string
	PendingCount int
}

// HysteresisOutcome is the result of applying one newly computed regime
// proposal against a HysteresisState.
type HysteresisOutcome struct {
	Effective string
	Next      HysteresisState
	// EffectiveIsComputed is true when Effective equals the freshly
	// computed proposal (as opposed to holding at the prior regime),
	// so callers know whether to attach the proposal's own reason codes
	// or build a synthetic RegimeResult carrying them anyway.
	EffectiveIsComputed bool
}

// ApplyHysteresis implements the exact state machine in
// original_source/src/labelwatch/scan.py's _run_derive_pass: a regime
// change only takes effect once the same candidate has been proposed
// threshold times in a row, preventing single-pass noise from flipping
// a labeler's regime back and forth every derivation cycle.
func ApplyHysteresis(state HysteresisState, computed string, threshold int) HysteresisOutcome {
	switch {
	case state.Current == "":
		// First derive — accept immediately, no hysteresis.
		return HysteresisOutcome{
			Effective:           computed,
			Next:                HysteresisState{Current: computed},
			EffectiveIsComputed: true,
		}
	case computed == state.Current:
		// Steady state — clear any pending candidate.
		return HysteresisOutcome{
			Effective:           state.Current,
			Next:                HysteresisState{Current: state.Current},
			EffectiveIsComputed: true,
		}
	case computed == state.Pending:
		// Same proposal as last pass — increment the counter.
		count := state.PendingCount + 1
		if count >= threshold {
			return HysteresisOutcome{
				Effective:           computed,
				Next:                HysteresisState{Current: computed},
				EffectiveIsComputed: true,
			}
		}
		return HysteresisOutcome{
			Effective: state.Current,
			Next:      HysteresisState{Current: state.Current, Pending: computed, PendingCount: count},
		}
	default:
		// New/different proposal — reset the counter.
		return HysteresisOutcome{
			Effective: state.Current,
			Next:      HysteresisState{Current: state.Current, Pending: computed, PendingCount: 1},
		}
	}
}
