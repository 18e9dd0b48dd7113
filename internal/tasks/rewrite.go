package tasks

import (
	"bytes"
	"context"
	"time"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/sitepipe/internal/fileset"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

// Pass is one sweep over generated files.
type Pass struct {
	Name  string
	Spec  paths.PathSpec // destination-side spec
	Chain transform.Chain
	// Rename predicts derived outputs for Plan; nil means in-place rewrites.
	Rename func(dest string) string
}

// RewriteTask post-processes generated content. Passes run in order and are
// independent: a file failing in one pass is still offered to the next.
type RewriteTask struct {
	base
	env    Env
	passes []Pass
}

// NewRewriteTask builds an optimization task.
func NewRewriteTask(name, desc string, env Env, passes ...Pass) *RewriteTask {
	return &RewriteTask{base: base{name: name, desc: desc, kind: KindOptimize}, env: env, passes: passes}
}

// Passes exposes the configured passes, for graph output.
func (t *RewriteTask) Passes() []Pass { return t.passes }

func (t *RewriteTask) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{Task: t.name}
	for _, p := range t.passes {
		runPass(ctx, t.env, t.name, p, &res)
	}
	res.Duration = time.Since(start)
	return res
}

// Plan implements Planner.
func (t *RewriteTask) Plan(context.Context) (Plan, error) {
	plan := Plan{}
	for _, p := range t.passes {
		plan.Reads = append(plan.Reads, p.Spec.Globs()...)
		plan.Rewrites = append(plan.Rewrites, RewriteRule{Spec: p.Spec, Accept: p.Chain.Accept, Rename: p.Rename})
	}
	return plan, nil
}

// runPass applies p.Chain to every accepted file under the pass spec. Unchanged
// results are not written back, which keeps repeated builds byte-identical.
func runPass(ctx context.Context, env Env, task string, p Pass, res *Result) {
	files, err := fileset.Expand(env.FS, env.Paths.BaseDir(p.Spec), p.Spec)
	if err != nil {
		if res.Err == nil {
			res.Err = expandError(task, p.Spec, err)
		}
		return
	}
	for _, f := range files {
		if !p.Chain.Accept(f.Rel) {
			continue
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return
		}
		data, err := afero.ReadFile(env.FS, f.Abs)
		if err != nil {
			res.Errors = append(res.Errors, &transform.TransformError{Task: task, Adapter: p.Name, File: f.Abs, Err: err})
			continue
		}
		orig := p.Spec.DestFor(f.Rel)
		asset := &transform.Asset{Path: orig, Source: f.Abs, Data: data}
		if err := p.Chain.Run(ctx, asset); err != nil {
			te, _ := transform.AsTransformError(err)
			te.Task = task
			res.Errors = append(res.Errors, te)
			continue
		}
		if asset.Path == orig && bytes.Equal(asset.Data, data) && len(asset.Companions) == 0 {
			continue
		}
		if err := writeAsset(env, asset); err != nil {
			res.Errors = append(res.Errors, &transform.TransformError{Task: task, Adapter: "write", File: f.Abs, Err: err})
			continue
		}
		env.logger().Debug("Rewrote", logfields.Task(task), logfields.Path(orig), logfields.Dest(asset.Path),
			"bytes_before", len(data), "bytes_after", len(asset.Data))
		res.Files++
	}
}
