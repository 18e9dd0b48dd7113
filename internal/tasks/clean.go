package tasks

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// CleanTask removes the destination root. Later phases assume a clean slate,
// so failure is fatal to the pipeline.
type CleanTask struct {
	base
	env Env
}

// NewCleanTask removes env.Paths.DestRoot.
func NewCleanTask(name, desc string, env Env) *CleanTask {
	return &CleanTask{base: base{name: name, desc: desc, kind: KindPrecondition}, env: env}
}

func (t *CleanTask) Run(context.Context) Result {
	start := time.Now()
	res := Result{Task: t.name}
	root := t.env.Paths.DestRoot
	if err := fileset.Clean(t.env.FS, root); err != nil {
		res.Err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "clean destination").
			WithContext("dest", root).
			Fatal().
			Build()
	} else {
		t.env.logger().Debug("Destination removed", logfields.Task(t.name), logfields.Dest(root))
	}
	res.Duration = time.Since(start)
	return res
}

// Plan implements Planner. Clean writes nothing.
func (t *CleanTask) Plan(context.Context) (Plan, error) { return Plan{}, nil }
