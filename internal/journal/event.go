// Package journal records pipeline runs as events in SQLite and projects them
// back into run summaries for the history command.
package journal

import "time"

// Event types.
const (
	TypePipelineStarted   = "pipeline.started"
	TypePhaseCompleted    = "phase.completed"
	TypeTaskCompleted     = "task.completed"
	TypePipelineCompleted = "pipeline.completed"
)

// Event is one journal row.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}
