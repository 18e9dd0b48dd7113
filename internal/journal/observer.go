package journal

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/pipeline"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// Observer writes pipeline callbacks to a Store. Write failures are logged
// and never affect the run.
type Observer struct {
	pipeline.NoopObserver
	store  Store
	logger *slog.Logger
}

// NewObserver returns an observer appending to store.
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

func (o *Observer) OnPipelineStart(run pipeline.RunInfo) {
	o.append(run.ID, TypePipelineStarted, PipelineStarted{Pipeline: run.Pipeline}, map[string]string{"pipeline": run.Pipeline})
}

func (o *Observer) OnTaskComplete(run pipeline.RunInfo, phase string, res tasks.Result) {
	payload := TaskCompleted{
		Task:       res.Task,
		Phase:      phase,
		Result:     string(res.Label()),
		DurationMS: res.Duration.Milliseconds(),
		Files:      res.Files,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	for _, fe := range res.Errors {
		msg := ""
		if fe.Err != nil {
			msg = fe.Err.Error()
		}
		payload.FileErrors = append(payload.FileErrors, FileError{
			File: fe.File, Line: fe.Line, Column: fe.Column, Adapter: fe.Adapter, Message: msg,
		})
	}
	o.append(run.ID, TypeTaskCompleted, payload, map[string]string{"task": res.Task})
}

func (o *Observer) OnPhaseComplete(run pipeline.RunInfo, phase pipeline.PhaseReport) {
	o.append(run.ID, TypePhaseCompleted, PhaseCompleted{
		Phase:      phase.Name,
		Mode:       phase.Mode,
		DurationMS: phase.Duration.Milliseconds(),
		Tasks:      len(phase.Results),
		Failed:     phase.Failed(),
	}, nil)
}

func (o *Observer) OnPipelineComplete(report *pipeline.Report) {
	o.append(report.RunID, TypePipelineCompleted, PipelineCompleted{
		Pipeline:   report.Pipeline,
		Outcome:    string(report.Outcome),
		DurationMS: report.Duration.Milliseconds(),
		FileErrors: report.FileErrors(),
	}, nil)
}

func (o *Observer) append(runID, eventType string, v any, meta map[string]string) {
	payload, err := encode(eventType, v)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = o.store.Append(ctx, runID, eventType, payload, meta)
	}
	if err != nil {
		o.logger.Warn("Journal write failed", logfields.RunID(runID), "type", eventType, logfields.Error(err))
	}
}
