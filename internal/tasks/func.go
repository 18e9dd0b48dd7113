package tasks

import (
	"context"
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// FuncTask wraps a function, typically a long-running process such as the
// reload server or the watcher. A panic is converted into a fatal result.
type FuncTask struct {
	base
	fn func(ctx context.Context) error
}

// NewFuncTask returns a process task running fn.
func NewFuncTask(name, desc string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{base: base{name: name, desc: desc, kind: KindProcess}, fn: fn}
}

func (t *FuncTask) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res = Result{Task: t.name}
	defer func() {
		if r := recover(); r != nil {
			res.Err = ferrors.InternalError(fmt.Sprintf("task %s panicked: %v", t.name, r)).Build()
		}
		res.Duration = time.Since(start)
	}()
	res.Err = t.fn(ctx)
	return res
}
