package derive

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

func TestEngineRunFirstPassAcceptsRegimeImmediately(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertDiscoveredLabeler(ctx, store.Labeler{
		LabelerDID:        "did:plc:a",
		LabelerClass:      "third_party",
		VisibilityClass:   "declared",
		ReachabilityState: "accessible",
		Auditability:      "high",
		DeclaredRecord:    true,
		HasLabelerService: true,
	}, formatTS(now.Add(-48*time.Hour))))

	for i := 0; i < 5; i++ {
		_, err := st.InsertEvent(ctx, store.Event{
			LabelerDID: "did:plc:a",
			URI:        "at://x",
			Val:        "spam",
			TS:         formatTS(now.Add(-time.Duration(i) * time.Hour)),
			EventHash:  itoa(i) + "hash",
		})
		require.NoError(t, err)
	}

	cfg := config.Default()
	eng := NewEngine(st, cfg)
	require.NoError(t, eng.Run(ctx, now))

	l, err := st.GetLabeler(ctx, "did:plc:a")
	require.NoError(t, err)
	require.NotEmpty(t, l.RegimeState)
	require.NotNil(t, l.AuditabilityRisk)
	require.NotNil(t, l.InferenceRisk)
	require.NotNil(t, l.TemporalCoherence)
}
