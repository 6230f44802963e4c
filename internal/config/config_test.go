package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvAppliesOverrides(t *testing.T) {
	t.Setenv("PKL_ALLOWED_MODULES", "file, https")
	t.Setenv("PKL_TIMEOUT_SECONDS", "30")
	t.Setenv("PKL_ROOT_DIR", "/workspace")

	cfg := LoadFromEnv()
	assert.Equal(t, []string{"file", "https"}, cfg.AllowedModules)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "/workspace", cfg.RootDir)
}

func TestDefaultSettingsHasPositiveTimeout(t *testing.T) {
	cfg := DefaultSettings()
	assert.Greater(t, cfg.Timeout, time.Duration(0))
}

func TestBuildFlagSetOverridesTimeout(t *testing.T) {
	os.Clearenv()
	fs, cfg := BuildFlagSet("pkl")
	require.NoError(t, fs.Parse([]string{"--timeout-seconds=5"}))
	ApplyFlags(fs, cfg)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestBuildFlagSetZeroDisablesTimeout(t *testing.T) {
	os.Clearenv()
	fs, cfg := BuildFlagSet("pkl")
	require.NoError(t, fs.Parse([]string{"--timeout-seconds=0"}))
	ApplyFlags(fs, cfg)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
}
