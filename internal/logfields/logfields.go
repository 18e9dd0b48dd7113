package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPipeline   = "pipeline"
	KeyPhase      = "phase"
	KeyTask       = "task"
	KeyAdapter    = "adapter"
	KeyPath       = "path"
	KeyDest       = "dest"
	KeyRule       = "rule"
	KeyFiles      = "files"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr          { return slog.String(KeyRunID, id) }
func Pipeline(name string) slog.Attr     { return slog.String(KeyPipeline, name) }
func Phase(name string) slog.Attr        { return slog.String(KeyPhase, name) }
func Task(name string) slog.Attr         { return slog.String(KeyTask, name) }
func Adapter(name string) slog.Attr      { return slog.String(KeyAdapter, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Dest(p string) slog.Attr            { return slog.String(KeyDest, p) }
func Rule(glob string) slog.Attr         { return slog.String(KeyRule, glob) }
func Files(n int) slog.Attr              { return slog.Int(KeyFiles, n) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
