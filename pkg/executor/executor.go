// Package executor runs submitted tasks to completion, each as an
// independent goroutine, with a configurable bound on how many execute at
// once. Tasks beyond the bound stay pending and are admitted in FIFO order
// as slots free up. Every task is guaranteed to reach a terminal state and a
// published event, whatever the automation collaborator does.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
	"github.com/aiassistantthx/browser-ai-backend/pkg/logging"
	"github.com/aiassistantthx/browser-ai-backend/pkg/task"
	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

const (
	// DefaultConcurrency is the default maximum number of tasks executing
	// at the same time. Should be set to respect the browser pool capacity.
	DefaultConcurrency = 4

	// DefaultTaskTimeout bounds worst-case execution of a single task.
	DefaultTaskTimeout = 5 * time.Minute
)

// errAlreadyTerminal signals that a guarded transition found the task in a
// terminal state. Callers treat it as "someone else finished this task".
var errAlreadyTerminal = errors.New("task already in terminal state")

// AutomationFunc runs one automation instruction. It is the sole injected
// dependency: the executor treats it as a long-running, fallible, cancellable
// external operation. Implementations should honor ctx cancellation; ones
// that do not are abandoned on timeout and their outcome discarded.
type AutomationFunc func(ctx context.Context, instruction types.Instruction) (string, error)

// Executor runs tasks against the store and publishes every transition to
// the hub.
type Executor struct {
	store   *task.Store
	hub     *hub.Hub
	run     AutomationFunc
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets the maximum number of tasks executing concurrently.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTaskTimeout sets the per-task execution deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.log = l
	}
}

// New creates an executor writing through store and publishing to h.
func New(store *task.Store, h *hub.Hub, run AutomationFunc, opts ...Option) *Executor {
	e := &Executor{
		store:   store,
		hub:     h,
		run:     run,
		sem:     semaphore.NewWeighted(DefaultConcurrency),
		timeout: DefaultTaskTimeout,
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch starts asynchronous execution of the task with the given id.
// It returns immediately; the task stays pending until a concurrency slot
// frees up. ctx is the process-lifetime context: cancelling it stops both
// queued and running tasks.
func (e *Executor) Dispatch(ctx context.Context, id string) {
	go e.runTask(ctx, id)
}

// Cancel transitions a pending or running task to cancelled, publishes the
// transition, and best-effort-interrupts the in-flight automation call.
// Cancelling a task already in a terminal state is a no-op that leaves the
// record untouched. Returns types.ErrNotFound for unknown ids.
func (e *Executor) Cancel(id string) (types.Task, error) {
	snap, err := e.store.Update(id, func(t *types.Task) error {
		if t.Status.IsTerminal() {
			return errAlreadyTerminal
		}
		t.Status = types.StatusCancelled
		return nil
	})
	if errors.Is(err, errAlreadyTerminal) {
		return snap, nil
	}
	if err != nil {
		return types.Task{}, err
	}

	e.hub.Publish(types.NewTaskEvent(snap))
	e.interrupt(id)
	e.logf("task %s cancelled", id)
	return snap, nil
}

func (e *Executor) runTask(ctx context.Context, id string) {
	// The per-task context covers both the queue wait and the execution, so
	// Cancel can release a task that is still waiting for a slot.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.track(id, cancel)
	defer e.untrack(id)

	// Waiters acquire in FIFO order, which keeps pending admission fair.
	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		// Cancelled while pending, or the process is shutting down. The
		// guarded transition is a no-op if Cancel already recorded it.
		e.markCancelled(id)
		return
	}
	defer e.sem.Release(1)

	snap, err := e.store.Update(id, transitionTo(types.StatusRunning))
	if err != nil {
		// Cancelled between admission and start, or unknown id.
		return
	}
	e.hub.Publish(types.NewTaskEvent(snap))
	e.logf("task %s running", id)

	taskCtx, cancelTimeout := context.WithTimeout(waitCtx, e.timeout)
	defer cancelTimeout()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, runErr := e.invoke(taskCtx, snap.Instruction)
		done <- outcome{result, runErr}
	}()

	select {
	case out := <-done:
		e.settle(id, taskCtx, out.result, out.err)

	case <-taskCtx.Done():
		// The automation did not return when its context ended. Disassociate
		// from it; a late outcome is discarded by the terminal-state guard.
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			e.fail(id, types.NewTaskError(types.FailureTimeout, "automation exceeded %s deadline", e.timeout))
		} else {
			// Client cancellation already recorded the transition; on process
			// shutdown the guarded update records it here instead.
			e.markCancelled(id)
		}
	}
}

// settle records the automation outcome as the task's terminal state.
func (e *Executor) settle(id string, taskCtx context.Context, result string, runErr error) {
	switch {
	case runErr == nil:
		e.complete(id, result)

	case errors.Is(runErr, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded):
		e.fail(id, types.NewTaskError(types.FailureTimeout, "automation exceeded %s deadline", e.timeout))

	case errors.Is(runErr, context.Canceled) || errors.Is(taskCtx.Err(), context.Canceled):
		// Client cancellation already transitioned the task; the guarded
		// update is a no-op in that case and the outcome is dropped.
		e.markCancelled(id)

	default:
		var taskErr *types.TaskError
		if errors.As(runErr, &taskErr) {
			e.fail(id, taskErr)
		} else {
			e.fail(id, types.NewTaskError(types.FailureAutomation, "%v", runErr))
		}
	}
}

// invoke calls the automation function, converting panics into internal
// errors so a faulty collaborator cannot leave a task stuck in running.
func (e *Executor) invoke(ctx context.Context, instruction types.Instruction) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewTaskError(types.FailureInternal, "automation panic: %v", r)
		}
	}()
	return e.run(ctx, instruction)
}

func (e *Executor) complete(id, result string) {
	snap, err := e.store.Update(id, func(t *types.Task) error {
		if !t.Status.CanTransitionTo(types.StatusCompleted) {
			return errAlreadyTerminal
		}
		t.Status = types.StatusCompleted
		t.Result = result
		return nil
	})
	if err != nil {
		return
	}
	e.hub.Publish(types.NewTaskEvent(snap))
	e.logf("task %s completed", id)
}

func (e *Executor) fail(id string, taskErr *types.TaskError) {
	snap, err := e.store.Update(id, func(t *types.Task) error {
		if !t.Status.CanTransitionTo(types.StatusFailed) {
			return errAlreadyTerminal
		}
		t.Status = types.StatusFailed
		t.Error = taskErr
		return nil
	})
	if err != nil {
		return
	}
	e.hub.Publish(types.NewTaskEvent(snap))
	e.logf("task %s failed: %s", id, taskErr.Error())
}

func (e *Executor) markCancelled(id string) {
	snap, err := e.store.Update(id, func(t *types.Task) error {
		if !t.Status.CanTransitionTo(types.StatusCancelled) {
			return errAlreadyTerminal
		}
		t.Status = types.StatusCancelled
		return nil
	})
	if err != nil {
		return
	}
	e.hub.Publish(types.NewTaskEvent(snap))
}

func transitionTo(next types.TaskStatus) func(*types.Task) error {
	return func(t *types.Task) error {
		if !t.Status.CanTransitionTo(next) {
			return errAlreadyTerminal
		}
		t.Status = next
		return nil
	}
}

func (e *Executor) track(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels[id] = cancel
}

func (e *Executor) untrack(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cancels, id)
}

func (e *Executor) interrupt(id string) {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Executor) logf(format string, v ...interface{}) {
	if e.log != nil {
		e.log.Infof(format, v...)
	}
}
