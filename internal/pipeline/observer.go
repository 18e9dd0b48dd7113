package pipeline

import (
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// RunInfo identifies one pipeline execution.
type RunInfo struct {
	ID       string
	Pipeline string
	Started  time.Time
}

// Observer receives callbacks around pipeline execution. OnTaskComplete is
// called from the goroutine that ran the task, so implementations must be safe
// for concurrent use.
type Observer interface {
	OnPipelineStart(run RunInfo)
	OnPhaseStart(run RunInfo, phase Phase)
	OnTaskComplete(run RunInfo, phase string, res tasks.Result)
	OnPhaseComplete(run RunInfo, phase PhaseReport)
	OnPipelineComplete(report *Report)
}

// NoopObserver ignores every callback.
type NoopObserver struct{}

func (NoopObserver) OnPipelineStart(RunInfo)                      {}
func (NoopObserver) OnPhaseStart(RunInfo, Phase)                  {}
func (NoopObserver) OnTaskComplete(RunInfo, string, tasks.Result) {}
func (NoopObserver) OnPhaseComplete(RunInfo, PhaseReport)         {}
func (NoopObserver) OnPipelineComplete(*Report)                   {}

// RecorderObserver feeds a metrics.Recorder.
type RecorderObserver struct {
	NoopObserver
	Rec metrics.Recorder
}

func (r RecorderObserver) OnTaskComplete(_ RunInfo, _ string, res tasks.Result) {
	r.Rec.ObserveTaskDuration(res.Task, res.Duration)
	r.Rec.IncTaskResult(res.Task, res.Label())
	if n := len(res.Errors); n > 0 {
		r.Rec.AddFileErrors(res.Task, n)
	}
}

func (r RecorderObserver) OnPhaseComplete(run RunInfo, phase PhaseReport) {
	r.Rec.ObservePhaseDuration(run.Pipeline, phase.Name, phase.Duration)
}

func (r RecorderObserver) OnPipelineComplete(report *Report) {
	r.Rec.IncPipelineOutcome(report.Pipeline, string(report.Outcome))
}

// observers fans callbacks out in registration order.
type observers []Observer

func (os observers) OnPipelineStart(run RunInfo) {
	for _, o := range os {
		o.OnPipelineStart(run)
	}
}

func (os observers) OnPhaseStart(run RunInfo, phase Phase) {
	for _, o := range os {
		o.OnPhaseStart(run, phase)
	}
}

func (os observers) OnTaskComplete(run RunInfo, phase string, res tasks.Result) {
	for _, o := range os {
		o.OnTaskComplete(run, phase, res)
	}
}

func (os observers) OnPhaseComplete(run RunInfo, phase PhaseReport) {
	for _, o := range os {
		o.OnPhaseComplete(run, phase)
	}
}

func (os observers) OnPipelineComplete(report *Report) {
	for _, o := range os {
		o.OnPipelineComplete(report)
	}
}
