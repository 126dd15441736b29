package schedule

import (
	"context"
	"strings"
	"sync"
)

// TaskType tags the maintenance operation a schedule runs.
type TaskType string

const (
	TaskUpdate  TaskType = "update"  // pull latest images and recreate containers
	TaskRestart TaskType = "restart" // restart all services
	TaskBackup  TaskType = "backup"  // archive data dir, optionally upload to S3
)

// ParseTaskType validates a task-type tag.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(strings.TrimSpace(s)) {
	case TaskUpdate:
		return TaskUpdate, nil
	case TaskRestart:
		return TaskRestart, nil
	case TaskBackup:
		return TaskBackup, nil
	default:
		return "", validationf("Invalid task type: %s", s)
	}
}

// Action is one maintenance operation invoked when a job fires. The runner
// logs the outcome and otherwise ignores it; actions own their failure
// reporting.
type Action func(ctx context.Context) error

// Registry maps task types to their concrete actions. Actions are supplied
// by the wiring layer; the scheduler core treats them as opaque.
type Registry struct {
	mu      sync.RWMutex
	actions map[TaskType]Action
}

func NewRegistry() *Registry {
	return &Registry{actions: map[TaskType]Action{}}
}

func (r *Registry) Register(t TaskType, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[t] = a
}

// Resolve maps a task-type tag to its registered action.
// Unknown tags and unregistered types are caller errors.
func (r *Registry) Resolve(taskType string) (Action, error) {
	t, err := ParseTaskType(taskType)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	a := r.actions[t]
	r.mu.RUnlock()
	if a == nil {
		return nil, validationf("Invalid task type: %s", taskType)
	}
	return a, nil
}
