package config

import "time"

const (
	DefaultConfigFile    = "sitepipe.yaml"
	DefaultSource        = "./src"
	DefaultDest          = "./dest"
	DefaultIncludePrefix = "@@"
	DefaultPartials      = "partials"
	DefaultPort          = 3001
	DefaultDebounce      = 300 * time.Millisecond
	DefaultJPEGQuality   = 82
	DefaultMetricsPath   = "/metrics"
	DefaultHistoryPath   = ".sitepipe/history.db"
)

// DefaultBrowsers are the engine targets used for vendor prefixing.
func DefaultBrowsers() map[string]string {
	return map[string]string{
		"chrome":  "64",
		"edge":    "79",
		"firefox": "67",
		"safari":  "11",
		"ios":     "11",
	}
}

// DefaultPurgeContent is the usage surface scanned before purging CSS.
func DefaultPurgeContent() []string {
	return []string{"**/*.html", "assets/js/**/*.js"}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Dest == "" {
		cfg.Dest = DefaultDest
	}
	if cfg.HTML.IncludePrefix == "" {
		cfg.HTML.IncludePrefix = DefaultIncludePrefix
	}
	if cfg.HTML.Partials == "" {
		cfg.HTML.Partials = DefaultPartials
	}
	if cfg.Styles.OutputStyle == "" {
		cfg.Styles.OutputStyle = "expanded"
	}
	if len(cfg.Styles.Browsers) == 0 {
		cfg.Styles.Browsers = DefaultBrowsers()
	}
	if cfg.Images.JPEGQuality == 0 {
		cfg.Images.JPEGQuality = DefaultJPEGQuality
	}
	if len(cfg.Purge.Content) == 0 {
		cfg.Purge.Content = DefaultPurgeContent()
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Index == "" {
		cfg.Server.Index = "index.html"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
}
