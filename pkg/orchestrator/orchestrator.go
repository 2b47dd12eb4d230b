// Package orchestrator composes the task store, executor, and notification
// hub into the submit/query/subscribe surface consumed by the transport
// layer. It owns the ordering guarantee that a task's id is queryable before
// submission returns and before the executor is dispatched, so a client can
// never hold an id that the store reports as not found.
package orchestrator

import (
	"context"
	"time"

	"github.com/aiassistantthx/browser-ai-backend/pkg/executor"
	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
	"github.com/aiassistantthx/browser-ai-backend/pkg/logging"
	"github.com/aiassistantthx/browser-ai-backend/pkg/task"
	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// DefaultSweepInterval is how often terminal records are checked against the
// store's retention window.
const DefaultSweepInterval = time.Minute

// Orchestrator is the composition root for the task lifecycle.
type Orchestrator struct {
	store         *task.Store
	hub           *hub.Hub
	exec          *executor.Executor
	log           *logging.Logger
	sweepInterval time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithSweepInterval sets how often expired terminal records are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// New wires the store, hub, and executor together.
func New(store *task.Store, h *hub.Hub, exec *executor.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		hub:           h,
		exec:          exec,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the retention sweeper until ctx is cancelled. Terminal records
// older than the store's retention window are evicted so sustained
// submission cannot grow memory without bound.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := o.store.EvictExpired(); removed > 0 && o.log != nil {
					o.log.Debugf("evicted %d expired task records", removed)
				}
			}
		}
	}()
}

// Submit creates a pending task for the instruction, publishes the pending
// event, dispatches execution, and returns the task snapshot. It never
// blocks on execution capacity: tasks beyond the concurrency bound stay
// pending until a slot frees.
func (o *Orchestrator) Submit(ctx context.Context, instruction types.Instruction) types.Task {
	snap := o.store.Create(instruction)
	if o.log != nil {
		o.log.Infof("task %s submitted", snap.ID)
	}

	// The record is in the store before either of these, so a query racing
	// the submission response can never miss it.
	o.hub.Publish(types.NewTaskEvent(snap))
	o.exec.Dispatch(ctx, snap.ID)

	return snap
}

// Query returns the current snapshot of the task, or types.ErrNotFound.
func (o *Orchestrator) Query(id string) (types.Task, error) {
	return o.store.Get(id)
}

// List returns snapshots of all tracked tasks, newest first.
func (o *Orchestrator) List() []types.Task {
	return o.store.List()
}

// Cancel requests cancellation of a pending or running task. Cancelling a
// task already in a terminal state is a no-op, not an error.
func (o *Orchestrator) Cancel(id string) (types.Task, error) {
	return o.exec.Cancel(id)
}

// Subscribe registers for task events matching the filter.
func (o *Orchestrator) Subscribe(filter hub.Filter) (*hub.Subscription, error) {
	return o.hub.Subscribe(filter)
}

// Unsubscribe releases a subscription. Idempotent.
func (o *Orchestrator) Unsubscribe(sub *hub.Subscription) {
	o.hub.Unsubscribe(sub)
}
