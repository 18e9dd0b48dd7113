package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// ParseLogLevel maps debug|info|warn|error onto slog levels.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q must be debug, info, warn or error", raw)
	}
}

// ParseLogFormat maps text|json onto a LogFormat.
func ParseLogFormat(raw string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LogFormatText:
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	default:
		return LogFormatText, fmt.Errorf("logging.format %q must be text or json", raw)
	}
}

// NewLogger builds the process logger. An explicit level (from --verbose or the
// SITEPIPE_LOG_LEVEL environment variable) wins over the configured one.
func NewLogger(w io.Writer, lc LoggingConfig, override string) *slog.Logger {
	raw := lc.Level
	if override != "" {
		raw = override
	}
	level, _ := ParseLogLevel(raw)
	format, _ := ParseLogFormat(lc.Format)
	opts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
