package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "report", cfg.FixPolicy)
	require.True(t, cfg.Color)
	require.Equal(t, option.ReportOnly, cfg.Policy())
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "udfkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fix-policy: autofix\ncolor: false\nblock-size: 4096\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "autofix", cfg.FixPolicy)
	require.False(t, cfg.Color)
	require.Equal(t, uint32(4096), cfg.BlockSize)
	require.Equal(t, option.AutoFix, cfg.Policy())
}

func TestPolicyFoldsForceIntoAutoFix(t *testing.T) {
	cfg := Config{FixPolicy: "interactive", Force: true}
	require.Equal(t, option.AutoFix, cfg.Policy())

	cfg.Force = false
	require.Equal(t, option.Interactive, cfg.Policy())
}

func TestOpenOptionsPrefersExplicitOverrideOverConfig(t *testing.T) {
	cfg := Config{BlockSize: 2048}
	opts := cfg.OpenOptions(512)
	o := option.Apply(opts...)
	require.Equal(t, uint32(512), o.BlockSize)

	opts = cfg.OpenOptions(0)
	o = option.Apply(opts...)
	require.Equal(t, uint32(2048), o.BlockSize)
}
