package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// Outcome summarizes a pipeline run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePartial   Outcome = "partial"   // completed with task or file failures
	OutcomeAborted   Outcome = "aborted"   // a fatal result stopped the pipeline
	OutcomeCancelled Outcome = "cancelled" // context cancelled before completion
)

// PhaseReport collects the results of one phase.
type PhaseReport struct {
	Name     string
	Mode     string
	Duration time.Duration
	Results  []tasks.Result
}

// Failed counts results that failed in any way.
func (p PhaseReport) Failed() int {
	n := 0
	for _, r := range p.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Report is the outcome of one Orchestrator run.
type Report struct {
	RunID    string
	Pipeline string
	Start    time.Time
	Duration time.Duration
	Phases   []PhaseReport
	Outcome  Outcome
}

// Results flattens task results across phases.
func (r *Report) Results() []tasks.Result {
	var out []tasks.Result
	for _, p := range r.Phases {
		out = append(out, p.Results...)
	}
	return out
}

// FileErrors counts per-file chain failures.
func (r *Report) FileErrors() int {
	n := 0
	for _, res := range r.Results() {
		n += len(res.Errors)
	}
	return n
}

// Result returns the named task's result, if it ran.
func (r *Report) Result(task string) (tasks.Result, bool) {
	for _, res := range r.Results() {
		if res.Task == task {
			return res, true
		}
	}
	return tasks.Result{}, false
}

// LogSummary writes one line per run.
func (r *Report) LogSummary(logger *slog.Logger) {
	level := slog.LevelInfo
	if r.Outcome != OutcomeSuccess {
		level = slog.LevelWarn
	}
	tasksRun, failed := 0, 0
	for _, p := range r.Phases {
		tasksRun += len(p.Results)
		failed += p.Failed()
	}
	logger.Log(context.Background(), level, "Pipeline finished",
		logfields.Pipeline(r.Pipeline),
		logfields.RunID(r.RunID),
		slog.String("outcome", string(r.Outcome)),
		slog.Int("tasks", tasksRun),
		slog.Int("failed_tasks", failed),
		slog.Int("file_errors", r.FileErrors()),
		logfields.Duration(r.Duration))
}
