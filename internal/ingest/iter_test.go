package ingest

import (
	"context"
	"path/filepath"
	"testing"

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

func TestIngestCreatesObservedOnlyLabeler(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	n, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "did:plc:newsrc", "uri": "at://x", "val": "spam", "ts": "2025-01-01T00:00:00.000000+00:00"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	l, err := st.GetLabeler(ctx, "did:plc:newsrc")
	require.NoError(t, err)
	require.Equal(t, "observed_only", l.VisibilityClass)
	require.True(t, l.ObservedAsSrc)
	require.Equal(t, "unknown", l.ReachabilityState)
}

func TestIngestSetsStickyObservedSrc(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertDiscoveredLabeler(ctx, store.Labeler{
		LabelerDID:        "did:plc:declared",
		LabelerClass:      "third_party",
		VisibilityClass:   "declared",
		ReachabilityState: "accessible",
		Auditability:      "high",
	}, "2025-01-01T00:00:00.000000+00:00"))

	_, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "did:plc:declared", "uri": "at://x", "val": "spam"},
	})
	require.NoError(t, err)

	l, err := st.GetLabeler(ctx, "did:plc:declared")
	require.NoError(t, err)
	require.True(t, l.ObservedAsSrc)
	require.Equal(t, "declared", l.VisibilityClass)
}

func TestIngestWritesObservedEvidence(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	_, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "did:plc:newsrc", "uri": "at://x", "val": "spam"},
	})
	require.NoError(t, err)

	ev, err := st.GetEvidence(ctx, "did:plc:newsrc")
	require.NoError(t, err)
	require.Len(t, ev, 1)
	require.Equal(t, "observed_label_src", ev[0].EvidenceType)
}

func TestIngestDedupesEvidenceWithinRun(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	_, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "did:plc:newsrc", "uri": "at://x", "val": "spam1"},
		{"labeler_did": "did:plc:owner", "src": "did:plc:newsrc", "uri": "at://y", "val": "spam2"},
	})
	require.NoError(t, err)

	ev, err := st.GetEvidence(ctx, "did:plc:newsrc")
	require.NoError(t, err)
	require.Len(t, ev, 1)
}

func TestIngestRejectsMalformedSrcDID(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	_, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "not-a-valid-did", "uri": "at://x", "val": "spam"},
	})
	require.NoError(t, err)

	_, err = st.GetLabeler(ctx, "not-a-valid-did")
	require.ErrorIs(t, err, store.ErrNotFound)

	owner, err := st.GetLabeler(ctx, "did:plc:owner")
	require.NoError(t, err)
	require.Equal(t, "did:plc:owner", owner.LabelerDID)
}

func TestObservedThenDeclared(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	_, err := FromIter(ctx, st, nil, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "src": "did:plc:upgraded", "uri": "at://x", "val": "spam"},
	})
	require.NoError(t, err)

	require.NoError(t, st.UpsertDiscoveredLabeler(ctx, store.Labeler{
		LabelerDID:        "did:plc:upgraded",
		LabelerClass:      "third_party",
		VisibilityClass:   "declared",
		ReachabilityState: "accessible",
		Auditability:      "high",
		ObservedAsSrc:     true,
	}, "2025-01-02T00:00:00.000000+00:00"))

	l, err := st.GetLabeler(ctx, "did:plc:upgraded")
	require.NoError(t, err)
	require.Equal(t, "declared", l.VisibilityClass)
	require.True(t, l.ObservedAsSrc)

	ev, err := st.GetEvidence(ctx, "did:plc:upgraded")
	require.NoError(t, err)
	require.NotEmpty(t, ev)
}

func TestStrictSchemaRejectsMalformedPayload(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	strict := config.Default()
	strict.StrictSchema = true

	n, err := FromIter(ctx, st, strict, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "uri": "at://x"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, n, "missing required val field should be rejected before NormalizeLabel even runs")

	n, err = FromIter(ctx, st, strict, []map[string]interface{}{
		{"labeler_did": "did:plc:owner", "uri": "at://x", "val": "spam"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n, "a well-formed payload still passes strict mode")
}
