// Package tasks defines the named, independently invocable units a pipeline
// is composed of. Every task reads its inputs through a PathSpec, so its
// declared inputs fully determine its outputs.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

// Kind groups tasks by role.
type Kind string

const (
	KindGenerate     Kind = "generate"     // writes fresh content from source
	KindOptimize     Kind = "optimize"     // rewrites generated content in place
	KindPrecondition Kind = "precondition" // must succeed before anything else runs
	KindProcess      Kind = "process"      // servers, watchers, notifications
)

// Task is one named unit of work.
type Task interface {
	Name() string
	Description() string
	Kind() Kind
	Run(ctx context.Context) Result
}

// Planner is implemented by tasks whose outputs can be predicted without
// running them. Static graph validation relies on it.
type Planner interface {
	Plan(ctx context.Context) (Plan, error)
}

// Plan is a task's predicted effect on the destination tree. Paths are
// destination-relative and slash-separated.
type Plan struct {
	Writes   []string      // files created from source inputs
	Reads    []string      // globs over generated content
	Rewrites []RewriteRule // generated files rewritten or derived
}

// RewriteRule predicts the outputs of a pass over generated files.
type RewriteRule struct {
	Spec   paths.PathSpec
	Accept func(rel string) bool
	// Rename maps an input path to a derived output; nil rewrites in place.
	Rename func(dest string) string
}

// Result is the outcome of one task run. Per-file failures are collected in
// Errors and never stop the task; Err is set when the task as a whole failed.
type Result struct {
	Task     string
	Duration time.Duration
	Files    int
	Errors   []*transform.TransformError
	Err      error
}

// Failed reports whether anything went wrong.
func (r Result) Failed() bool { return r.Err != nil || len(r.Errors) > 0 }

// Fatal reports whether the failure must stop the pipeline.
func (r Result) Fatal() bool { return r.Err != nil && ferrors.IsFatal(r.Err) }

// Label classifies the result for metrics.
func (r Result) Label() metrics.ResultLabel {
	switch {
	case r.Fatal():
		return metrics.ResultFatal
	case r.Err != nil:
		return metrics.ResultFailed
	case len(r.Errors) > 0:
		return metrics.ResultPartial
	default:
		return metrics.ResultSuccess
	}
}

// Env is what file-based tasks share.
type Env struct {
	FS     afero.Fs
	Paths  *paths.Registry
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

type base struct {
	name string
	desc string
	kind Kind
}

func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.desc }
func (b base) Kind() Kind          { return b.kind }
