package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, p.Logger())
}

func TestTrackPassRecordsCounters(t *testing.T) {
	p, err := New(&Config{ServiceName: "labelwatch-test", ServiceVersion: "test", LogLevel: "debug"})
	require.NoError(t, err)

	ctx := context.Background()
	done := p.TrackPass(ctx, "ingest")
	done(nil)

	done2 := p.TrackPass(ctx, "scan")
	done2(errors.New("boom"))

	rm, err := p.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, rm)

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	require.True(t, found["labelwatch.pass.total"])
	require.True(t, found["labelwatch.pass.errors"])
	require.True(t, found["labelwatch.pass.duration"])
	require.True(t, found["labelwatch.pass.active"])
}

func TestTrackPassNilProviderIsNoop(t *testing.T) {
	var p *Provider
	done := p.TrackPass(context.Background(), "derive")
	done(nil) // must not panic
}

func TestNewLoggerLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		l := newLogger(&Config{ServiceName: "x", LogFormat: "json", LogLevel: lvl})
		require.NotNil(t, l)
	}
}
