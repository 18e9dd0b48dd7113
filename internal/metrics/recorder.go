package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultPartial ResultLabel = "partial" // task finished but some files failed their chain
	ResultFailed  ResultLabel = "failed"
	ResultFatal   ResultLabel = "fatal"
)

// Recorder defines observability hooks for pipeline, phase and task metrics.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	AddFileErrors(task string, n int)
	ObservePhaseDuration(pipeline, phase string, d time.Duration)
	IncPipelineOutcome(pipeline, outcome string)
	IncWatchTrigger(task string)
	IncReloadBroadcast()
	SetReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration)          {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)                  {}
func (NoopRecorder) AddFileErrors(string, int)                          {}
func (NoopRecorder) ObservePhaseDuration(string, string, time.Duration) {}
func (NoopRecorder) IncPipelineOutcome(string, string)                  {}
func (NoopRecorder) IncWatchTrigger(string)                             {}
func (NoopRecorder) IncReloadBroadcast()                                {}
func (NoopRecorder) SetReloadClients(int)                               {}
