package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 168, cfg.ChunkSize)
	require.Equal(t, 64, cfg.MaxSessions)
	require.Equal(t, 65536, cfg.HakuLimits.Fuel)
	require.Equal(t, 10, cfg.AutoSave.IntervalSeconds)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rakugaki.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nchunk_size: 256\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 256, cfg.ChunkSize)
	// Untouched keys keep their defaults.
	require.Equal(t, 64, cfg.MaxSessions)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("RAKUGAKI_PORT", "9999")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
}

func TestAutoSaveIntervalConvertsToDuration(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 10e9, float64(cfg.AutoSaveInterval()))
}
