package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Equal(t, DefaultDest, cfg.Dest)
	assert.Equal(t, dir, cfg.Project)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.SourceDir())
	assert.Equal(t, filepath.Join(dir, "dest"), cfg.DestDir())
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)
	assert.True(t, cfg.HTML.BeautifyEnabled())
	assert.True(t, cfg.Images.WebPEnabled())
	assert.True(t, cfg.Purge.IsEnabled())
}

func TestLoad_OverridesAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITEPIPE_TEST_PORT", "4000")
	path := writeConfig(t, dir, `
source: ./site
dest: ./public
server:
  port: ${SITEPIPE_TEST_PORT}
  open: false
watch:
  debounce: 150ms
images:
  jpeg_quality: 70
  webp: false
paths:
  images:
    include: ["assets/img/**/*"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./site", cfg.Source)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.False(t, cfg.Server.OpenBrowser())
	assert.True(t, cfg.Server.LiveReloadEnabled())
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 70, cfg.Images.JPEGQuality)
	assert.False(t, cfg.Images.WebPEnabled())
	assert.Equal(t, []string{"assets/img/**/*"}, cfg.Paths["images"].Include)
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITEPIPE_TEST_DEST=./from-file\n"), 0o600))
	t.Setenv("SITEPIPE_TEST_DEST", "./from-env")
	path := writeConfig(t, dir, "dest: ${SITEPIPE_TEST_DEST}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./from-env", cfg.Dest)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "source: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"dest equals source", func(c *Config) { c.Dest = c.Source }, "dest must differ from source"},
		{"source inside dest", func(c *Config) { c.Dest = "./build"; c.Source = "./build/src" }, "source must not live inside dest"},
		{"dest is project", func(c *Config) { c.Dest = "." }, "dest must not contain the project directory"},
		{"bad output style", func(c *Config) { c.Styles.OutputStyle = "nested" }, "output_style"},
		{"bad jpeg quality", func(c *Config) { c.Images.JPEGQuality = 101 }, "jpeg_quality"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Project = t.TempDir()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
			assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))
		})
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)

	err = Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, Init(path, true))
}

func TestParseLogLevel(t *testing.T) {
	for _, raw := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
		_, err := ParseLogLevel(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
