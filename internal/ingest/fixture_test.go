package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromFixtureUnwrapsLabelEnvelope(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	content := `{"label":{"labeler_did":"did:plc:x","src":"did:plc:x","uri":"at://1","val":"spam"}}
{"labeler_did":"did:plc:x","src":"did:plc:x","uri":"at://2","val":"spam"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := FromFixture(ctx, st, nil, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestFromFixtureSkipsBlankLines(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	content := "\n{\"labeler_did\":\"did:plc:x\",\"uri\":\"at://1\",\"val\":\"spam\"}\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := FromFixture(ctx, st, nil, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
