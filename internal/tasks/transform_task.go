package tasks

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/sitepipe/internal/fileset"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

// TransformTask runs every matched source file through a Chain and writes the
// result, plus any companions, below the destination root. A file failing its
// chain is recorded and skipped.
type TransformTask struct {
	base
	env   Env
	spec  paths.PathSpec
	chain transform.Chain

	// Outputs predicts the destination paths for a source file; it defaults
	// to the spec's mapping.
	Outputs func(rel string) []string
}

// NewTransformTask builds a generation task applying chain to spec's matches.
func NewTransformTask(name, desc string, env Env, spec paths.PathSpec, chain transform.Chain) *TransformTask {
	return &TransformTask{base: base{name: name, desc: desc, kind: KindGenerate}, env: env, spec: spec, chain: chain}
}

// Chain exposes the adapters, for graph output.
func (t *TransformTask) Chain() transform.Chain { return t.chain }

func (t *TransformTask) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res.Task = t.name
	defer func() { res.Duration = time.Since(start) }()

	files, err := fileset.Expand(t.env.FS, t.env.Paths.BaseDir(t.spec), t.spec)
	if err != nil {
		res.Err = expandError(t.name, t.spec, err)
		return res
	}

	for _, f := range files {
		if !t.chain.Accept(f.Rel) {
			continue
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		data, err := afero.ReadFile(t.env.FS, f.Abs)
		if err != nil {
			res.Errors = append(res.Errors, &transform.TransformError{Task: t.name, File: f.Abs, Err: err})
			continue
		}
		asset := &transform.Asset{Path: t.spec.DestFor(f.Rel), Source: f.Abs, Data: data}
		if err := t.chain.Run(ctx, asset); err != nil {
			te, _ := transform.AsTransformError(err)
			te.Task = t.name
			res.Errors = append(res.Errors, te)
			continue
		}
		if err := writeAsset(t.env, asset); err != nil {
			res.Errors = append(res.Errors, &transform.TransformError{Task: t.name, Adapter: "write", File: f.Abs, Err: err})
			continue
		}
		t.env.logger().Debug("Transformed", logfields.Task(t.name), logfields.Path(f.Rel), logfields.Dest(asset.Path))
		res.Files++
	}
	return res
}

// Plan implements Planner.
func (t *TransformTask) Plan(context.Context) (Plan, error) {
	files, err := fileset.Expand(t.env.FS, t.env.Paths.BaseDir(t.spec), t.spec)
	if err != nil {
		return Plan{}, expandError(t.name, t.spec, err)
	}
	outputs := t.Outputs
	if outputs == nil {
		outputs = func(rel string) []string { return []string{t.spec.DestFor(rel)} }
	}
	plan := Plan{}
	for _, f := range files {
		if t.chain.Accept(f.Rel) {
			plan.Writes = append(plan.Writes, outputs(f.Rel)...)
		}
	}
	return plan, nil
}

func writeAsset(env Env, a *transform.Asset) error {
	if err := fileset.WriteAtomic(env.FS, destPath(env, a.Path), a.Data); err != nil {
		return err
	}
	for _, c := range a.Companions {
		if err := fileset.WriteAtomic(env.FS, destPath(env, c.Path), c.Data); err != nil {
			return err
		}
	}
	return nil
}

func destPath(env Env, rel string) string {
	return filepath.Join(env.Paths.DestRoot, filepath.FromSlash(path.Clean(rel)))
}
