package config

import (
	"time"
)

// Config is the sitepipe.yaml document.
type Config struct {
	Version string `yaml:"version,omitempty"`

	// Project is the directory holding optional project-level inputs such as
	// _redirects. Relative roots below resolve against it. Defaults to the
	// directory of the config file.
	Project string `yaml:"project,omitempty"`
	Source  string `yaml:"source"`
	Dest    string `yaml:"dest"`

	Paths   map[string]PathOverride `yaml:"paths,omitempty"`
	HTML    HTMLConfig              `yaml:"html"`
	Styles  StylesConfig            `yaml:"styles"`
	Images  ImagesConfig            `yaml:"images"`
	Purge   PurgeConfig             `yaml:"purge"`
	Server  ServerConfig            `yaml:"server"`
	Watch   WatchConfig             `yaml:"watch"`
	Logging LoggingConfig           `yaml:"logging"`
	Metrics MetricsConfig           `yaml:"metrics"`
	History HistoryConfig           `yaml:"history"`
}

// PathOverride replaces fields of a named path registry entry. Empty fields keep the default.
type PathOverride struct {
	Base    string   `yaml:"base,omitempty"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	Dest    string   `yaml:"dest,omitempty"`
}

// HTMLConfig controls page assembly from partials.
type HTMLConfig struct {
	IncludePrefix string `yaml:"include_prefix"`
	Partials      string `yaml:"partials"` // relative to source
	Beautify      *bool  `yaml:"beautify,omitempty"`
}

// BeautifyEnabled reports whether assembled pages are pretty-printed.
func (h HTMLConfig) BeautifyEnabled() bool { return boolOr(h.Beautify, true) }

// StylesConfig controls stylesheet compilation.
type StylesConfig struct {
	// SassBinary is the Dart Sass executable; empty means "sass" from PATH.
	SassBinary   string            `yaml:"sass_binary,omitempty"`
	IncludePaths []string          `yaml:"include_paths,omitempty"`
	OutputStyle  string            `yaml:"output_style"`
	SourceMaps   *bool             `yaml:"source_maps,omitempty"`
	Browsers     map[string]string `yaml:"browsers,omitempty"`
}

// SourceMapsEnabled reports whether compiled stylesheets get external source maps.
func (s StylesConfig) SourceMapsEnabled() bool { return boolOr(s.SourceMaps, true) }

// ImagesConfig controls the image optimization pass.
type ImagesConfig struct {
	JPEGQuality int   `yaml:"jpeg_quality"`
	WebP        *bool `yaml:"webp,omitempty"`
}

// WebPEnabled reports whether WebP companions are generated.
func (i ImagesConfig) WebPEnabled() bool { return boolOr(i.WebP, true) }

// PurgeConfig controls unused-selector removal.
type PurgeConfig struct {
	Enabled  *bool    `yaml:"enabled,omitempty"`
	Content  []string `yaml:"content,omitempty"` // dest-relative globs forming the usage surface
	Safelist []string `yaml:"safelist,omitempty"`
}

// IsEnabled reports whether the purge pass runs before CSS minification.
func (p PurgeConfig) IsEnabled() bool { return boolOr(p.Enabled, true) }

// ServerConfig controls the development server.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Index      string `yaml:"index"`
	Open       *bool  `yaml:"open,omitempty"`
	LiveReload *bool  `yaml:"live_reload,omitempty"`
}

// OpenBrowser reports whether dev opens the site in a browser once serving.
func (s ServerConfig) OpenBrowser() bool { return boolOr(s.Open, true) }

// LiveReloadEnabled reports whether the reload script is injected.
func (s ServerConfig) LiveReloadEnabled() bool { return boolOr(s.LiveReload, true) }

// WatchConfig controls change detection.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint on the dev server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HistoryConfig controls the SQLite run journal.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool { return &b }
