package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskName() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunCompleted  = "run.completed"
)

// TaskStartedEvent is published when a task body begins execution.
type TaskStartedEvent struct {
	Name      string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskName() string  { return e.Name }

// TaskCompletedEvent is published when a task body returns successfully.
type TaskCompletedEvent struct {
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskName() string  { return e.Name }

// TaskFailedEvent is published when a task body returns an error or panics.
type TaskFailedEvent struct {
	Name      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskName() string  { return e.Name }

// RunProgressEvent is published after every task completion or failure.
type RunProgressEvent struct {
	Total     int
	Completed int
	Running   int
	Failed    int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskName() string  { return "" }

// RunCompletedEvent is published when an executor finishes, successfully or
// not. Mode is "sequential" or "parallel".
type RunCompletedEvent struct {
	Mode      string
	Duration  time.Duration
	Err       error
	Timestamp time.Time
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) TaskName() string  { return "" }
