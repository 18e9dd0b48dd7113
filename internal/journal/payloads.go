package journal

import (
	"encoding/json"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// PipelineStarted is the payload of TypePipelineStarted.
type PipelineStarted struct {
	Pipeline string   `json:"pipeline"`
	Phases   []string `json:"phases,omitempty"`
}

// PhaseCompleted is the payload of TypePhaseCompleted.
type PhaseCompleted struct {
	Phase      string `json:"phase"`
	Mode       string `json:"mode"`
	DurationMS int64  `json:"duration_ms"`
	Tasks      int    `json:"tasks"`
	Failed     int    `json:"failed"`
}

// FileError is one file that failed its chain.
type FileError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Adapter string `json:"adapter,omitempty"`
	Message string `json:"message"`
}

// TaskCompleted is the payload of TypeTaskCompleted.
type TaskCompleted struct {
	Task       string      `json:"task"`
	Phase      string      `json:"phase"`
	Result     string      `json:"result"`
	DurationMS int64       `json:"duration_ms"`
	Files      int         `json:"files"`
	Error      string      `json:"error,omitempty"`
	FileErrors []FileError `json:"file_errors,omitempty"`
}

// PipelineCompleted is the payload of TypePipelineCompleted.
type PipelineCompleted struct {
	Pipeline   string `json:"pipeline"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
	FileErrors int    `json:"file_errors"`
}

func encode(eventType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ferrors.JournalError("failed to marshal payload").
			WithCause(err).
			WithContext("type", eventType).
			Build()
	}
	return data, nil
}

// Decode unmarshals an event payload into v.
func Decode(e Event, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return ferrors.JournalError("failed to unmarshal payload").
			WithCause(err).
			WithContext("type", e.Type).
			WithContext("event_id", e.ID).
			Build()
	}
	return nil
}
