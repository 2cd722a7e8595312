package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultURLSource, cfg.URLSource)
	assert.Equal(t, filepath.Join("data", "aster30m"), cfg.OutputDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"_num.tif"}, cfg.ExcludeSuffixes)
	assert.Equal(t, "token.txt", cfg.TokenFile)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.Delay)
	require.NoError(t, cfg.Validate())
}

func TestStagingDefaultsNextToOutput(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("data", "temp_zips"), cfg.Staging())

	cfg.StagingDir = "/tmp/zips"
	assert.Equal(t, "/tmp/zips", cfg.Staging())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url_source: https://example.com/urls.txt
output_dir: /srv/dem
workers: 12
exclude_suffixes: [_num.tif, _qa.tif]
timeout: 90s
retry:
  attempts: 5
  delay: 2s
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/urls.txt", cfg.URLSource)
	assert.Equal(t, "/srv/dem", cfg.OutputDir)
	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, []string{"_num.tif", "_qa.tif"}, cfg.ExcludeSuffixes)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)

	// Unset fields keep their defaults.
	assert.Equal(t, "token.txt", cfg.TokenFile)
}

func TestLoadFromFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: soon\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEMFETCH_URL_SOURCE", "https://example.com/env.txt")
	t.Setenv("DEMFETCH_WORKERS", "16")
	t.Setenv("DEMFETCH_EXCLUDE_SUFFIXES", "_num.tif, _aux.xml")
	t.Setenv("DEMFETCH_RETRY_DELAY", "500ms")

	cfg := Default()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.com/env.txt", cfg.URLSource)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, []string{"_num.tif", "_aux.xml"}, cfg.ExcludeSuffixes)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
}

func TestLoadFromEnvBadValue(t *testing.T) {
	t.Setenv("DEMFETCH_WORKERS", "many")
	cfg := Default()
	require.Error(t, cfg.LoadFromEnv())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url source", func(c *Config) { c.URLSource = "" }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
