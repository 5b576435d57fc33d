package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesOriginal(t *testing.T) {
	cfg := Default()
	require.Equal(t, "labelwatch.db", cfg.DBPath)
	require.Equal(t, 15, cfg.WindowMinutes)
	require.Equal(t, 10.0, cfg.SpikeK)
	require.Equal(t, 0.25, cfg.ConcentrationThreshold)
	require.Equal(t, 0.8, cfg.ChurnThreshold)
	require.True(t, cfg.WarmupEnabled)
	require.Equal(t, 50000, cfg.ReversalCapPerLabeler)
	require.Len(t, cfg.ReferenceDIDs, 2)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labelwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spike_k: 5.0\nchurn_min_targets: 25\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5.0, cfg.SpikeK)
	require.Equal(t, 25, cfg.ChurnMinTargets)
	// Unset fields keep defaults.
	require.Equal(t, 0.25, cfg.ConcentrationThreshold)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LABELWATCH_DB_PATH", "/tmp/override.db")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/override.db", cfg.DBPath)
}

func TestToReceiptDictSubset(t *testing.T) {
	cfg := Default()
	subset := cfg.ToReceiptDict()
	require.Equal(t, cfg.WindowMinutes, subset.WindowMinutes)
	require.Equal(t, cfg.ChurnThreshold, subset.ChurnThreshold)
}
