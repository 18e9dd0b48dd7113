package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// Orchestrator executes pipelines from a Graph.
type Orchestrator struct {
	graph     *Graph
	logger    *slog.Logger
	observers observers
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithObserver appends observers.
func WithObserver(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

// WithRecorder reports task, phase and pipeline metrics to rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if rec != nil {
			o.observers = append(o.observers, RecorderObserver{Rec: rec})
		}
	}
}

// New returns an Orchestrator over g.
func New(g *Graph, opts ...Option) *Orchestrator {
	o := &Orchestrator{graph: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Graph returns the graph being executed.
func (o *Orchestrator) Graph() *Graph { return o.graph }

// Run executes the named pipeline. The returned error is non-nil only when
// the pipeline is unknown, a fatal result aborted it, or ctx was cancelled;
// ordinary task failures are reported through the Report.
func (o *Orchestrator) Run(ctx context.Context, name string) (*Report, error) {
	p, ok := o.graph.Pipeline(name)
	if !ok {
		return nil, ferrors.NotFoundError("unknown pipeline").WithContext("pipeline", name).Build()
	}
	return o.execute(ctx, p)
}

// RunTasks executes the named tasks as one parallel phase.
func (o *Orchestrator) RunTasks(ctx context.Context, names ...string) (*Report, error) {
	for _, name := range names {
		if _, ok := o.graph.Task(name); !ok {
			return nil, ferrors.NotFoundError("unknown task").WithContext("task", name).Build()
		}
	}
	p := Pipeline{Name: "tasks", Phases: []Phase{{Name: "tasks", Tasks: names}}}
	return o.execute(ctx, p)
}

func (o *Orchestrator) execute(ctx context.Context, p Pipeline) (*Report, error) {
	run := RunInfo{ID: uuid.NewString(), Pipeline: p.Name, Started: time.Now()}
	report := &Report{RunID: run.ID, Pipeline: p.Name, Start: run.Started, Outcome: OutcomeSuccess}
	logger := o.logger.With(logfields.Pipeline(p.Name), logfields.RunID(run.ID))

	logger.Info("Pipeline starting", slog.Int("phases", len(p.Phases)))
	o.observers.OnPipelineStart(run)

	var detached []*detachedPhase
	var runErr error

	for _, phase := range p.Phases {
		if err := ctx.Err(); err != nil {
			report.Outcome = OutcomeCancelled
			runErr = err
			break
		}
		o.observers.OnPhaseStart(run, phase)

		if phase.Detached {
			logger.Info("Phase launched", logfields.Phase(phase.Name), slog.Any("tasks", phase.Tasks))
			detached = append(detached, o.launch(ctx, run, phase))
			continue
		}

		pr := o.runPhase(ctx, run, phase)
		o.finishPhase(logger, run, report, pr)

		if fatal, ok := firstFatal(pr); ok {
			report.Outcome = OutcomeAborted
			runErr = ferrors.WrapError(fatal.Err, ferrors.CategoryBuild, "pipeline aborted").
				WithContext("pipeline", p.Name).
				WithContext("phase", phase.Name).
				WithContext("task", fatal.Task).
				Fatal().
				Build()
			break
		}
	}

	for _, d := range detached {
		pr := d.wait()
		o.finishPhase(logger, run, report, pr)
	}

	if report.Outcome == OutcomeSuccess {
		for _, pr := range report.Phases {
			if pr.Failed() > 0 {
				report.Outcome = OutcomePartial
				break
			}
		}
	}
	report.Duration = time.Since(run.Started)
	report.LogSummary(logger)
	o.observers.OnPipelineComplete(report)
	return report, runErr
}

func (o *Orchestrator) runPhase(ctx context.Context, run RunInfo, phase Phase) PhaseReport {
	start := time.Now()
	pr := PhaseReport{Name: phase.Name, Mode: phase.Mode(), Results: make([]tasks.Result, len(phase.Tasks))}

	if phase.Sequential {
		for i, name := range phase.Tasks {
			pr.Results[i] = o.runTask(ctx, run, phase.Name, name)
			if pr.Results[i].Fatal() {
				pr.Results = pr.Results[:i+1]
				break
			}
		}
	} else {
		var wg sync.WaitGroup
		for i, name := range phase.Tasks {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				pr.Results[i] = o.runTask(ctx, run, phase.Name, name)
			}(i, name)
		}
		wg.Wait()
	}

	pr.Duration = time.Since(start)
	return pr
}

// runTask runs one task, turning a panic into a fatal result.
func (o *Orchestrator) runTask(ctx context.Context, run RunInfo, phase, name string) (res tasks.Result) {
	t, ok := o.graph.Task(name)
	if !ok {
		res = tasks.Result{Task: name, Err: ferrors.NotFoundError("unknown task").WithContext("task", name).Build()}
		o.observers.OnTaskComplete(run, phase, res)
		return res
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Task panicked", logfields.Task(name), slog.String("stack", string(debug.Stack())))
			res = tasks.Result{
				Task: name,
				Err: ferrors.InternalError(fmt.Sprintf("task panicked: %v", r)).
					WithContext("task", name).
					Build(),
			}
		}
		if res.Task == "" {
			res.Task = name
		}
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
		o.observers.OnTaskComplete(run, phase, res)
	}()

	o.logger.Debug("Task starting", logfields.Task(name), logfields.Phase(phase))
	return t.Run(ctx)
}

func (o *Orchestrator) finishPhase(logger *slog.Logger, run RunInfo, report *Report, pr PhaseReport) {
	logPhase(logger, pr)
	report.Phases = append(report.Phases, pr)
	o.observers.OnPhaseComplete(run, pr)
}

// logPhase reports every failure after the barrier, so a broken file is
// visible without the rest of the phase being affected.
func logPhase(logger *slog.Logger, pr PhaseReport) {
	for _, res := range pr.Results {
		for _, fe := range res.Errors {
			logger.Error("File failed",
				logfields.Task(res.Task),
				logfields.Path(fe.File),
				slog.Int("line", fe.Line),
				slog.Int("column", fe.Column),
				logfields.Adapter(fe.Adapter),
				logfields.Error(fe.Err))
		}
		if res.Err != nil {
			logger.Error("Task failed",
				logfields.Task(res.Task),
				slog.Bool("fatal", res.Fatal()),
				logfields.Error(res.Err))
			continue
		}
		logger.Debug("Task finished",
			logfields.Task(res.Task),
			logfields.Files(res.Files),
			slog.Int("file_errors", len(res.Errors)),
			logfields.Duration(res.Duration))
	}
	logger.Info("Phase complete",
		logfields.Phase(pr.Name),
		slog.String("mode", pr.Mode),
		slog.Int("tasks", len(pr.Results)),
		slog.Int("failed", pr.Failed()),
		logfields.Duration(pr.Duration))
}

func firstFatal(pr PhaseReport) (tasks.Result, bool) {
	for _, r := range pr.Results {
		if r.Fatal() {
			return r, true
		}
	}
	return tasks.Result{}, false
}

// detachedPhase is a phase whose tasks keep running after launch.
type detachedPhase struct {
	start  time.Time
	phase  Phase
	wg     sync.WaitGroup
	result []tasks.Result
}

func (o *Orchestrator) launch(ctx context.Context, run RunInfo, phase Phase) *detachedPhase {
	d := &detachedPhase{start: time.Now(), phase: phase, result: make([]tasks.Result, len(phase.Tasks))}
	for i, name := range phase.Tasks {
		d.wg.Add(1)
		go func(i int, name string) {
			defer d.wg.Done()
			d.result[i] = o.runTask(ctx, run, phase.Name, name)
		}(i, name)
	}
	return d
}

func (d *detachedPhase) wait() PhaseReport {
	d.wg.Wait()
	return PhaseReport{
		Name:     d.phase.Name,
		Mode:     d.phase.Mode(),
		Duration: time.Since(d.start),
		Results:  d.result,
	}
}
