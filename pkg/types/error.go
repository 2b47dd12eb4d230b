package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a task id is not known to the store.
var ErrNotFound = errors.New("task not found")

// FailureKind classifies why a task failed.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"          // FailureTimeout indicates the automation exceeded its deadline.
	FailureAutomation FailureKind = "automation_error" // FailureAutomation indicates the automation collaborator reported a failure.
	FailureInternal   FailureKind = "internal_error"   // FailureInternal indicates an unexpected fault in orchestration itself.
)

// TaskError is the structured failure recorded on a failed task.
type TaskError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewTaskError creates a TaskError with the given kind and message.
func NewTaskError(kind FailureKind, format string, args ...interface{}) *TaskError {
	return &TaskError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}
