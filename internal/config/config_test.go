package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/pixelforge_test")
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("NOTIFY_BASE_URL", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("CONFIG_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.QueueMaxWorkers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadRequiredVars(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err, "DATABASE_URL must be required")

	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "")
	_, err = Load()
	assert.Error(t, err, "SESSION_SECRET must be required")
}

func TestLoadSweepInterval(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)

	t.Setenv("SWEEP_INTERVAL", "often")
	_, err = Load()
	assert.Error(t, err, "unparseable SWEEP_INTERVAL must fail")
}

func TestLoadYAMLOverride(t *testing.T) {
	setBaseEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("port: \"9090\"\nsweep_interval: 5m\nallowed_origins:\n  - https://studio.example.com\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://studio.example.com"}, cfg.AllowedOrigins)
	// Env-only values survive the merge.
	assert.Equal(t, "postgres://localhost/pixelforge_test", cfg.DatabaseURL)
}

func TestLoadBadDurationInFile(t *testing.T) {
	setBaseEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sweep_interval: whenever\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
