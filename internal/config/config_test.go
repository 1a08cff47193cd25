package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 12, cfg.Navigator.MaxSteps)
	assert.Equal(t, 300*time.Millisecond, cfg.Navigator.SettleDelay)
	assert.Equal(t, 3, cfg.Navigator.StallThreshold)
	assert.Equal(t, 2, cfg.Navigator.WeakSignalThreshold)
	assert.True(t, cfg.Navigator.AssumeSuccessOnVanish)
	assert.InDelta(t, 0.7, cfg.Cache.FuzzyFloor, 1e-9)
	assert.False(t, cfg.Answers.Enabled)
	assert.NotEmpty(t, cfg.Classifier.CountryKeywords)
	assert.NotEmpty(t, cfg.Classifier.KnownCountries)
	assert.Equal(t, "United States", cfg.Profile.Country)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
navigator:
  max_steps: 5
profile:
  country: Canada
  email: jo@example.com
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Navigator.MaxSteps)
	assert.Equal(t, "Canada", cfg.Profile.Country)
	assert.Equal(t, "jo@example.com", cfg.Profile.Email)
	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.Navigator.StallThreshold)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	// An explicitly-named file must exist; only the implicit search path is
	// allowed to come up empty.
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FORMPILOT_NAVIGATOR_MAX_STEPS", "7")
	t.Setenv("FORMPILOT_PROFILE_CITY", "Berlin")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Navigator.MaxSteps)
	assert.Equal(t, "Berlin", cfg.Profile.City)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Navigator.MaxSteps = 0
	assert.ErrorContains(t, cfg.Validate(), "max_steps")

	cfg = Default()
	cfg.Navigator.StallThreshold = -1
	assert.ErrorContains(t, cfg.Validate(), "stall_threshold")

	cfg = Default()
	cfg.Cache.FuzzyFloor = 1.5
	assert.ErrorContains(t, cfg.Validate(), "fuzzy_floor")

	cfg = Default()
	cfg.Answers.Enabled = true
	cfg.Answers.Endpoint = ""
	assert.ErrorContains(t, cfg.Validate(), "endpoint")
}
