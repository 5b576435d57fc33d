package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLabelRequiresLabelerDIDOrSrc(t *testing.T) {
	_, err := NormalizeLabel(map[string]interface{}{"uri": "at://x", "val": "spam"})
	require.Error(t, err)
}

func TestNormalizeLabelFallsBackToSrc(t *testing.T) {
	event, err := NormalizeLabel(map[string]interface{}{
		"src": "did:plc:abc",
		"uri": "at://x",
		"val": "spam",
	})
	require.NoError(t, err)
	require.Equal(t, "did:plc:abc", event.LabelerDID)
}

func TestNormalizeLabelRequiresURIAndVal(t *testing.T) {
	_, err := NormalizeLabel(map[string]interface{}{"labeler_did": "did:plc:abc", "uri": "at://x"})
	require.Error(t, err)
}

func TestNormalizeLabelDefaultsTimestamp(t *testing.T) {
	event, err := NormalizeLabel(map[string]interface{}{
		"labeler_did": "did:plc:abc",
		"uri":         "at://x",
		"val":         "spam",
	})
	require.NoError(t, err)
	require.NotEmpty(t, event.TS)
}

func TestNormalizeLabelStableHash(t *testing.T) {
	raw := map[string]interface{}{
		"labeler_did": "did:plc:abc",
		"src":         "did:plc:abc",
		"uri":         "at://x",
		"val":         "spam",
		"ts":          "2025-01-01T00:00:00.000000+00:00",
	}
	a, err := NormalizeLabel(raw)
	require.NoError(t, err)
	b, err := NormalizeLabel(raw)
	require.NoError(t, err)
	require.Equal(t, a.EventHash, b.EventHash)
	require.NotEmpty(t, a.EventHash)
}

func TestNormalizeLabelNegCoercion(t *testing.T) {
	event, err := NormalizeLabel(map[string]interface{}{
		"labeler_did": "did:plc:abc",
		"uri":         "at://x",
		"val":         "spam",
		"neg":         true,
	})
	require.NoError(t, err)
	require.True(t, event.Neg)
}

func TestIsValidDID(t *testing.T) {
	require.True(t, isValidDID("did:plc:abc123"))
	require.True(t, isValidDID("did:web:example.com"))
	require.False(t, isValidDID("not-a-valid-did"))
	require.False(t, isValidDID(""))
}
