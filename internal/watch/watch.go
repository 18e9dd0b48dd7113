// Package watch maps filesystem changes under the source tree to the tasks
// that consume them and reruns those tasks, one worker per task.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
)

// Runner runs one task by name.
type Runner interface {
	Run(ctx context.Context, task string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, task string) error

func (f RunnerFunc) Run(ctx context.Context, task string) error { return f(ctx, task) }

// Notifier is told after every rerun, successful or not.
type Notifier interface {
	Reload(reason string)
}

// Rule reruns Task when a file selected by the named path spec changes.
type Rule struct {
	Spec string
	Task string
}

// Watcher turns change events into debounced task runs. Each task has its own
// worker cycling idle, running, notify, idle; changes arriving while the task
// runs collapse into a single rerun.
type Watcher struct {
	reg      *paths.Registry
	rules    map[string][]string
	runner   Runner
	notifier Notifier
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
	rec      metrics.Recorder

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

type worker struct {
	task    string
	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a task reruns.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithIgnore adds glob patterns matched against base names and source-relative paths.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) { w.ignore = append(w.ignore, patterns...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithRecorder counts reruns per task.
func WithRecorder(r metrics.Recorder) Option { return func(w *Watcher) { w.rec = r } }

// New validates rules against reg and returns an idle Watcher.
func New(reg *paths.Registry, rules []Rule, runner Runner, notifier Notifier, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		reg:      reg,
		rules:    make(map[string][]string),
		runner:   runner,
		notifier: notifier,
		debounce: 300 * time.Millisecond,
		logger:   slog.Default(),
		rec:      metrics.NoopRecorder{},
		workers:  make(map[string]*worker),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, r := range rules {
		if _, ok := reg.Lookup(r.Spec); !ok {
			return nil, ferrors.WatchError("watch rule references unknown path spec").
				WithContext("spec", r.Spec).Build()
		}
		if r.Task == "" {
			return nil, ferrors.WatchError("watch rule without a task").WithContext("spec", r.Spec).Build()
		}
		w.rules[r.Spec] = append(w.rules[r.Spec], r.Task)
	}
	for _, pattern := range w.ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, ferrors.WatchError("invalid ignore pattern").WithContext("pattern", pattern).Build()
		}
	}
	return w, nil
}

// Run watches the source tree recursively and the project root's top level
// until ctx is cancelled, then waits for in-flight reruns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "create watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	if err := addDirsRecursive(fw, w.reg.SourceRoot, w.logger); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "watch source").
			WithContext("dir", w.reg.SourceRoot).Build()
	}
	if w.reg.ProjectRoot != "" && w.reg.ProjectRoot != w.reg.SourceRoot {
		if err := fw.Add(w.reg.ProjectRoot); err != nil {
			w.logger.Warn("watch add failed", "dir", w.reg.ProjectRoot, logfields.Error(err))
		}
	}
	w.logger.Info("Watching for changes", "dir", w.reg.SourceRoot, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				w.shutdown()
				return nil
			}
			w.handleEvent(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				w.shutdown()
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create && within(ev.Name, w.reg.SourceRoot) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(fw, ev.Name, w.logger)
		}
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
	w.Trigger(ctx, ev.Name)
}

// Trigger schedules every task whose rules select abs and returns their
// names, sorted.
func (w *Watcher) Trigger(ctx context.Context, abs string) []string {
	if w.shouldIgnore(abs) {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, spec := range w.reg.Locate(abs) {
		for _, task := range w.rules[spec] {
			if seen[task] {
				continue
			}
			seen[task] = true
			out = append(out, task)
			w.logger.Debug("Change matched", logfields.Rule(spec), logfields.Task(task))
			w.schedule(ctx, task)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) schedule(ctx context.Context, task string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	wk, ok := w.workers[task]
	if !ok {
		wk = &worker{task: task}
		w.workers[task] = wk
	}
	w.mu.Unlock()

	wk.mu.Lock()
	defer wk.mu.Unlock()
	if wk.timer != nil {
		wk.timer.Stop()
	}
	wk.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx, wk) })
}

// fire starts the worker, or marks it pending when a run is in progress.
func (w *Watcher) fire(ctx context.Context, wk *worker) {
	wk.mu.Lock()
	if wk.running {
		wk.pending = true
		wk.mu.Unlock()
		return
	}
	wk.running = true
	wk.mu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		wk.mu.Lock()
		wk.running = false
		wk.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go w.loop(ctx, wk)
}

func (w *Watcher) loop(ctx context.Context, wk *worker) {
	defer w.wg.Done()
	for {
		w.runOnce(ctx, wk.task)

		wk.mu.Lock()
		if wk.pending && ctx.Err() == nil {
			wk.pending = false
			wk.mu.Unlock()
			continue
		}
		wk.running = false
		wk.pending = false
		wk.mu.Unlock()
		return
	}
}

func (w *Watcher) runOnce(ctx context.Context, task string) {
	w.rec.IncWatchTrigger(task)
	w.logger.Info("Change detected; running task", logfields.Task(task))
	start := time.Now()
	reason := task
	if err := w.runner.Run(ctx, task); err != nil {
		w.logger.Warn("Rerun failed", logfields.Task(task), logfields.Error(err))
		reason = task + ":error"
	} else {
		w.logger.Info("Rerun complete", logfields.Task(task), logfields.Duration(time.Since(start)))
	}
	if w.notifier != nil {
		w.notifier.Reload(reason)
	}
}

// shutdown stops pending timers and waits for running workers.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	workers := make([]*worker, 0, len(w.workers))
	for _, wk := range w.workers {
		workers = append(workers, wk)
	}
	w.mu.Unlock()

	for _, wk := range workers {
		wk.mu.Lock()
		if wk.timer != nil {
			wk.timer.Stop()
		}
		wk.mu.Unlock()
	}
	w.wg.Wait()
}

func (w *Watcher) shouldIgnore(path string) bool {
	if shouldIgnoreEvent(path) {
		return true
	}
	base := filepath.Base(path)
	rel := ""
	if r, err := filepath.Rel(w.reg.SourceRoot, path); err == nil && within(path, w.reg.SourceRoot) {
		rel = filepath.ToSlash(r)
	}
	for _, pattern := range w.ignore {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok && rel != "" {
			return true
		}
	}
	return false
}

func addDirsRecursive(fw *fsnotify.Watcher, root string, logger *slog.Logger) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				logger.Warn("watch add failed", "dir", path, logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger reruns.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") ||
		base == "4913" {
		return true
	}

	return base == "Thumbs.db"
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
