package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// Load reads configPath, expands ${VAR} references, applies defaults and validates.
// A missing file is not an error: the conventional src/dest layout is used instead.
func Load(configPath string) (*Config, error) {
	loadEnvFile(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("No configuration file, using defaults", "path", configPath)
		data = nil
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
			WithContext("path", configPath).Fatal().Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").
			WithContext("path", configPath).Fatal().Build()
	}

	if cfg.Project == "" {
		cfg.Project = filepath.Dir(configPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML with environment expansion and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Init writes a configuration file populated with defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	cfg := Default()
	cfg.Styles.SourceMaps = Bool(true)
	cfg.Images.WebP = Bool(true)
	cfg.Server.Open = Bool(true)
	cfg.Server.LiveReload = Bool(true)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// SourceDir returns the absolute source root.
func (c *Config) SourceDir() string { return c.resolve(c.Source) }

// DestDir returns the absolute destination root.
func (c *Config) DestDir() string { return c.resolve(c.Dest) }

// ProjectDir returns the absolute project root.
func (c *Config) ProjectDir() string { return c.resolve(".") }

// HistoryPath returns the absolute run journal location.
func (c *Config) HistoryPath() string { return c.resolve(c.History.Path) }

func (c *Config) resolve(p string) string {
	if !filepath.IsAbs(p) {
		base := c.Project
		if base == "" {
			base = "."
		}
		p = filepath.Join(base, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
