package types

import (
	"time"
)

// TaskEvent represents a single task state transition pushed to subscribers.
type TaskEvent struct {
	// TaskID identifies the task the event belongs to.
	TaskID string `json:"task_id"`

	// Status is the state the task transitioned into.
	Status TaskStatus `json:"status"`

	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`

	// Result carries the automation output for completed events.
	Result string `json:"result,omitempty"`

	// Error carries the failure for failed events.
	Error *TaskError `json:"error,omitempty"`
}

// NewTaskEvent creates an event reflecting the task's current state.
func NewTaskEvent(t Task) TaskEvent {
	return TaskEvent{
		TaskID:    t.ID,
		Status:    t.Status,
		Timestamp: t.UpdatedAt,
		Result:    t.Result,
		Error:     t.Error,
	}
}

// IsTerminal returns true if the event reports a terminal state.
func (e TaskEvent) IsTerminal() bool {
	return e.Status.IsTerminal()
}
