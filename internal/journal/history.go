package journal

import (
	"context"
	"time"
)

// RunSummary is a read model of one run rebuilt from its events.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Pipeline    string        `json:"pipeline"`
	Status      string        `json:"status"` // "running" until completed, then the outcome
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Tasks       int           `json:"tasks"`
	FailedTasks int           `json:"failed_tasks"`
	FileErrors  int           `json:"file_errors"`
}

const statusRunning = "running"

// Summarize folds a run's events into a summary.
func Summarize(runID string, events []Event) RunSummary {
	s := RunSummary{RunID: runID, Status: statusRunning}
	for i, e := range events {
		if i == 0 {
			s.StartedAt = e.Timestamp
		}
		switch e.Type {
		case TypePipelineStarted:
			var p PipelineStarted
			if Decode(e, &p) == nil {
				s.Pipeline = p.Pipeline
			}
			s.StartedAt = e.Timestamp
		case TypeTaskCompleted:
			var p TaskCompleted
			if Decode(e, &p) == nil {
				s.Tasks++
				if p.Error != "" || len(p.FileErrors) > 0 {
					s.FailedTasks++
				}
				s.FileErrors += len(p.FileErrors)
			}
		case TypePipelineCompleted:
			var p PipelineCompleted
			if Decode(e, &p) == nil {
				if p.Pipeline != "" {
					s.Pipeline = p.Pipeline
				}
				s.Status = p.Outcome
				s.Duration = time.Duration(p.DurationMS) * time.Millisecond
			}
			done := e.Timestamp
			s.CompletedAt = &done
		}
	}
	return s
}

// Recent returns summaries of the latest runs, newest first.
func Recent(ctx context.Context, store Store, limit int) ([]RunSummary, error) {
	ids, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		events, err := store.ByRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(id, events))
	}
	return out, nil
}
