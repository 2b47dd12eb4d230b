package types

import (
	"time"
)

// TaskStatus defines the lifecycle state of a submitted task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"   // StatusPending indicates the task is queued and has not started executing.
	StatusRunning   TaskStatus = "running"   // StatusRunning indicates the task is currently executing.
	StatusCompleted TaskStatus = "completed" // StatusCompleted indicates the task finished successfully with a result.
	StatusFailed    TaskStatus = "failed"    // StatusFailed indicates the task finished with an error.
	StatusCancelled TaskStatus = "cancelled" // StatusCancelled indicates the task was cancelled before completing.
)

// IsTerminal returns true if no further transition can occur from this status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
//
// Legal transitions:
//
//	pending → running, cancelled
//	running → completed, failed, cancelled
//
// Terminal states permit no transitions.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Instruction is the payload submitted by the client. The orchestration core
// treats it as opaque; only the automation collaborator interprets it.
type Instruction struct {
	// URL is the page the automation should start from. Optional.
	URL string `json:"url,omitempty"`

	// Task is the natural-language description of what to do.
	Task string `json:"task"`
}

// Task represents one submitted automation instruction and its tracked lifecycle.
type Task struct {
	// ID uniquely identifies the task for the lifetime of the process.
	ID string `json:"id"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Instruction is the payload supplied at submission. Immutable.
	Instruction Instruction `json:"instruction"`

	// Result holds the automation output. Set only when Status is completed.
	Result string `json:"result,omitempty"`

	// Error describes the failure. Set only when Status is failed.
	Error *TaskError `json:"error,omitempty"`

	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt advances on every state transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the task so callers never observe a record
// mid-mutation.
func (t *Task) Clone() Task {
	out := *t
	if t.Error != nil {
		errCopy := *t.Error
		out.Error = &errCopy
	}
	return out
}
