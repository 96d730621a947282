package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "merge-overlaps", cfg.ROI.OverlapPolicy)
	assert.Equal(t, 10, cfg.ROI.ContextSize)
	assert.Equal(t, 3, cfg.Portal.PollRetryLimit)
	assert.Equal(t, 120, cfg.Portal.PollTimeoutMinutes)
	assert.NotEmpty(t, cfg.Portal.Selectors[SelStatusText])
	assert.Equal(t, "complete", cfg.Portal.StatusMap["Completed"])
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad overlap policy", func(c *Config) { c.ROI.OverlapPolicy = "drop-some" }},
		{"threshold above one", func(c *Config) { c.ROI.ConfidenceThreshold = 1.5 }},
		{"zero poll retry limit", func(c *Config) { c.Portal.PollRetryLimit = 0 }},
		{"zero workers", func(c *Config) { c.Runner.Workers = 0 }},
		{"zero ncbi rate", func(c *Config) { c.NCBI.RequestsPerSecond = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genefold.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "custom.db"

[roi]
overlap_policy = "keep-all"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.Database.Path)
	assert.Equal(t, "keep-all", cfg.ROI.OverlapPolicy)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.NCBI.RetMax)
}

func TestSaveStripsCredentialsAndRotatesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genefold.toml")

	cfg := defaultConfig(t)
	cfg.Portal.Email = "user@example.com"
	cfg.Portal.Password = "hunter2"
	cfg.NCBI.APIKey = "secret"

	require.NoError(t, Save(cfg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "user@example.com")

	// Second save creates .back1 of the first.
	require.NoError(t, Save(cfg, path))
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)
}
