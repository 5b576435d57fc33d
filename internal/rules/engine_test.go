package rules

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

func openTempStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labelwatch.db")
	s, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEngineRunFiresRateSpikeAndPersistsReceipt(t *testing.T) {
	ctx := context.Background()
	st := openTempStore(t)
	cfg := config.Default()
	cfg.WarmupEnabled = false
	cfg.SpikeMinCountDefault = 3
	cfg.SpikeK = 10.0

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	seenTS := now.Add(-time.Hour).Format(time.RFC3339Nano)
	require.NoError(t, st.UpsertDiscoveredLabeler(ctx, store.Labeler{
		LabelerDID:  "did:plc:spiky",
		VisibilityClass: "declared",
		ReachabilityState: "accessible",
		ClassificationConfidence: "high",
		ClassificationVersion: "v1",
		Auditability: "medium",
		DeclaredRecord: true,
	}, seenTS))

	for i := 0; i < 10; i++ {
		ts := now.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339Nano)
		_, err := st.InsertEvent(ctx, store.Event{
			LabelerDID: "did:plc:spiky",
			URI:        "at://did:plc:target/app.bsky.feed.post/1",
			Val:        "spam",
			TS:         ts,
			EventHash:  "hash-" + ts + "-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}

	eng := NewEngine(st, cfg)
	alerts, err := eng.Run(ctx, now)
	require.NoError(t, err)

	var foundSpike bool
	for _, a := range alerts {
		if a.RuleID == RuleRateSpike {
			foundSpike = true
		}
	}
	require.True(t, foundSpike, "expected a rate-spike alert given a zero baseline and 10 recent events")

	persisted, err := st.RecentAlerts(ctx, "did:plc:spiky", "2000-01-01T00:00:00Z", 10)
	require.NoError(t, err)
	require.NotEmpty(t, persisted)
	require.Len(t, persisted[0].ReceiptHash, 64)
	require.NotEmpty(t, persisted[0].ConfigHash)
	// Zero baseline rate produces an infinite ratio; persisting it (instead
	// of erroring out of the scan pass) is the whole point of this test.
	require.Contains(t, persisted[0].InputsJSON, `"ratio":Infinity`)
	require.False(t, persisted[0].WarmupAlert)
}

func TestEngineRunIsNoopOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	st := openTempStore(t)
	cfg := config.Default()

	eng := NewEngine(st, cfg)
	alerts, err := eng.Run(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, alerts)
}
