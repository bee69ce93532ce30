package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, ":8420", cfg.Listen)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "repos", cfg.ReposDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Session.CardCount)
	assert.Equal(t, 30, cfg.Session.HardCardPercentage)
	assert.Equal(t, 6*time.Hour, cfg.Session.PendingTTL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashfam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log_level: debug
session:
  card_count: 15
  pending_ttl: 2h
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15, cfg.Session.CardCount)
	assert.Equal(t, 2*time.Hour, cfg.Session.PendingTTL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 30, cfg.Session.HardCardPercentage)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashfam.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: from-file\n"), 0o644))

	t.Setenv("FLASHFAM_DATA_DIR", "from-env")
	t.Setenv("FLASHFAM_SESSION__CARD_COUNT", "25")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, 25, cfg.Session.CardCount)
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("FLASHFAM_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level=error"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("FLASHFAM_LOG_LEVEL", "loud")
	_, err := Load("", nil)
	assert.Error(t, err)
}
