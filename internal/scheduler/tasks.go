package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"matter_intake_backend/internal/saga"

	"github.com/hibiken/asynq"
)

// TaskPrefix namespaces stage events; the task type is TaskPrefix + path.
const TaskPrefix = "matter."

// TaskType returns the task type carrying the stage event for path.
func TaskType(path saga.Path) string {
	return TaskPrefix + string(path)
}

// NewStageTask encodes ev as the task for path.
func NewStageTask(path saga.Path, ev saga.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskType(path), data), nil
}

// ParseStageTask decodes a stage task back into its path and event.
func ParseStageTask(task *asynq.Task) (saga.Path, saga.Event, error) {
	path, ok := strings.CutPrefix(task.Type(), TaskPrefix)
	if !ok || path == "" {
		return "", saga.Event{}, fmt.Errorf("task type %q is not a stage event", task.Type())
	}

	var ev saga.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return "", saga.Event{}, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	if ev.FileID == "" {
		return "", saga.Event{}, fmt.Errorf("%s payload has no fileId", task.Type())
	}
	return saga.Path(path), ev, nil
}
