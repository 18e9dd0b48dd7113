package tasks

import (
	"context"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

// CopyTask relocates matching files without transforming them. Optional
// specs with no matches are skipped silently.
type CopyTask struct {
	base
	env  Env
	spec paths.PathSpec
}

// NewCopyTask copies every file selected by spec.
func NewCopyTask(name, desc string, env Env, spec paths.PathSpec) *CopyTask {
	return &CopyTask{base: base{name: name, desc: desc, kind: KindGenerate}, env: env, spec: spec}
}

func (t *CopyTask) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res.Task = t.name
	defer func() { res.Duration = time.Since(start) }()

	files, err := fileset.Expand(t.env.FS, t.env.Paths.BaseDir(t.spec), t.spec)
	if err != nil {
		res.Err = expandError(t.name, t.spec, err)
		return res
	}
	if len(files) == 0 {
		if t.spec.Optional {
			t.env.logger().Debug("Optional input absent, skipping", logfields.Task(t.name), logfields.Rule(t.spec.String()))
		}
		return res
	}

	destDir := t.env.Paths.DestDir(t.spec)
	for _, f := range files {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		dst := filepath.Join(destDir, filepath.FromSlash(f.Rel))
		if err := fileset.Copy(t.env.FS, f.Abs, dst); err != nil {
			res.Errors = append(res.Errors, &transform.TransformError{Task: t.name, Adapter: "copy", File: f.Abs, Err: err})
			continue
		}
		res.Files++
	}
	return res
}

// Plan implements Planner.
func (t *CopyTask) Plan(context.Context) (Plan, error) {
	files, err := fileset.Expand(t.env.FS, t.env.Paths.BaseDir(t.spec), t.spec)
	if err != nil {
		return Plan{}, expandError(t.name, t.spec, err)
	}
	plan := Plan{}
	for _, f := range files {
		plan.Writes = append(plan.Writes, t.spec.DestFor(f.Rel))
	}
	return plan, nil
}

func expandError(task string, spec paths.PathSpec, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "expand task inputs").
		WithContext("task", task).
		WithContext("spec", spec.Name).
		Build()
}
