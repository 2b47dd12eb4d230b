package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
	"github.com/aiassistantthx/browser-ai-backend/pkg/task"
	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// waitForStatus polls the store until the task reaches the given status or
// the deadline expires.
func waitForStatus(t *testing.T, store *task.Store, id string, status types.TaskStatus) types.Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := store.Get(id)
		require.NoError(t, err)
		if snap.Status == status {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := store.Get(id)
	t.Fatalf("task %s never reached %s (last status %s)", id, status, snap.Status)
	return types.Task{}
}

// collectStatuses drains events from the subscription until a terminal event
// arrives or the deadline expires.
func collectStatuses(t *testing.T, sub *hub.Subscription) []types.TaskStatus {
	t.Helper()

	var statuses []types.TaskStatus
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return statuses
			}
			statuses = append(statuses, ev.Status)
			if ev.IsTerminal() {
				return statuses
			}
		case <-deadline:
			t.Fatalf("no terminal event observed; got %v", statuses)
		}
	}
}

func TestExecutor_CompletesTask(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "clicked " + instr.Task, nil
	})

	created := store.Create(types.Instruction{Task: "click button"})
	sub, err := h.Subscribe(hub.Filter{TaskID: created.ID})
	require.NoError(t, err)

	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusCompleted)
	assert.Equal(t, "clicked click button", snap.Result)
	assert.Nil(t, snap.Error)

	statuses := collectStatuses(t, sub)
	assert.Equal(t, []types.TaskStatus{types.StatusRunning, types.StatusCompleted}, statuses)
}

func TestExecutor_AutomationErrorBecomesFailedState(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "", errors.New("element not found")
	})

	created := store.Create(types.Instruction{Task: "click missing"})
	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, types.FailureAutomation, snap.Error.Kind)
	assert.Contains(t, snap.Error.Message, "element not found")
	assert.Empty(t, snap.Result)
}

func TestExecutor_TypedFailureKindPreserved(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "", types.NewTaskError(types.FailureInternal, "driver crashed")
	})

	created := store.Create(types.Instruction{Task: "t"})
	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, types.FailureInternal, snap.Error.Kind)
}

func TestExecutor_TimeoutForcesFailed(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, WithTaskTimeout(20*time.Millisecond))

	created := store.Create(types.Instruction{Task: "slow"})
	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, types.FailureTimeout, snap.Error.Kind)
}

func TestExecutor_TimeoutAbandonsUncooperativeAutomation(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	release := make(chan struct{})
	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		// Ignores ctx entirely.
		<-release
		return "late result", nil
	}, WithTaskTimeout(20*time.Millisecond))

	created := store.Create(types.Instruction{Task: "stuck"})
	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusFailed)
	assert.Equal(t, types.FailureTimeout, snap.Error.Kind)

	// Let the abandoned call finish; its outcome must be discarded.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, snap.Status)
	assert.Empty(t, snap.Result)
}

func TestExecutor_PanicBecomesInternalError(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		panic("boom")
	})

	created := store.Create(types.Instruction{Task: "t"})
	exec.Dispatch(context.Background(), created.ID)

	snap := waitForStatus(t, store, created.ID, types.StatusFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, types.FailureInternal, snap.Error.Kind)
	assert.Contains(t, snap.Error.Message, "boom")
}

func TestExecutor_ConcurrencyBound(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	const limit = 2
	const total = 8

	var running, peak int64
	release := make(chan struct{})

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		n := atomic.AddInt64(&running, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt64(&running, -1)
		return "ok", nil
	}, WithConcurrency(limit))

	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		created := store.Create(types.Instruction{Task: "t"})
		ids = append(ids, created.ID)
		exec.Dispatch(context.Background(), created.ID)
	}

	// Give the first wave time to start; the rest must stay pending.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt64(&running), int64(limit))

	pending := 0
	for _, id := range ids {
		snap, err := store.Get(id)
		require.NoError(t, err)
		if snap.Status == types.StatusPending {
			pending++
		}
	}
	assert.Equal(t, total-limit, pending)

	close(release)
	for _, id := range ids {
		waitForStatus(t, store, id, types.StatusCompleted)
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
}

func TestExecutor_CancelRunningTask(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	started := make(chan struct{})
	var once sync.Once
	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return "", ctx.Err()
	})

	created := store.Create(types.Instruction{Task: "t"})
	exec.Dispatch(context.Background(), created.ID)
	<-started

	snap, err := exec.Cancel(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, snap.Status)

	// The cancelled state must stick even after the automation call returns.
	time.Sleep(50 * time.Millisecond)
	snap, err = store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, snap.Status)
	assert.Nil(t, snap.Error)
	assert.Empty(t, snap.Result)
}

func TestExecutor_CancelPendingTask(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	release := make(chan struct{})
	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		<-release
		return "ok", nil
	}, WithConcurrency(1))

	blocker := store.Create(types.Instruction{Task: "blocker"})
	exec.Dispatch(context.Background(), blocker.ID)

	queued := store.Create(types.Instruction{Task: "queued"})
	exec.Dispatch(context.Background(), queued.ID)

	// Wait until the blocker occupies the only slot.
	waitForStatus(t, store, blocker.ID, types.StatusRunning)

	snap, err := exec.Cancel(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, snap.Status)

	close(release)
	waitForStatus(t, store, blocker.ID, types.StatusCompleted)

	// The cancelled task must never run.
	snap, err = store.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, snap.Status)
}

func TestExecutor_CancelTerminalTaskIsNoop(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "done", nil
	})

	created := store.Create(types.Instruction{Task: "t"})
	exec.Dispatch(context.Background(), created.ID)
	completed := waitForStatus(t, store, created.ID, types.StatusCompleted)

	snap, err := exec.Cancel(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, snap.Status)
	assert.Equal(t, completed.Result, snap.Result)
	assert.Equal(t, completed.UpdatedAt, snap.UpdatedAt, "no-op cancel must not touch the record")
}

func TestExecutor_CancelUnknownID(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "", nil
	})

	_, err := exec.Cancel("no-such-task")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExecutor_EventOrderPerTask(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		return "", errors.New("nope")
	})

	created := store.Create(types.Instruction{Task: "t"})
	sub, err := h.Subscribe(hub.Filter{TaskID: created.ID})
	require.NoError(t, err)

	exec.Dispatch(context.Background(), created.ID)
	waitForStatus(t, store, created.ID, types.StatusFailed)

	statuses := collectStatuses(t, sub)
	assert.Equal(t, []types.TaskStatus{types.StatusRunning, types.StatusFailed}, statuses)
}

func TestExecutor_ShutdownCancelsQueuedTasks(t *testing.T) {
	store := task.NewStore()
	h := hub.NewHub()
	defer h.Close()

	release := make(chan struct{})
	defer close(release)
	exec := New(store, h, func(ctx context.Context, instr types.Instruction) (string, error) {
		select {
		case <-release:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, WithConcurrency(1))

	ctx, cancel := context.WithCancel(context.Background())

	blocker := store.Create(types.Instruction{Task: "blocker"})
	exec.Dispatch(ctx, blocker.ID)
	waitForStatus(t, store, blocker.ID, types.StatusRunning)

	queued := store.Create(types.Instruction{Task: "queued"})
	exec.Dispatch(ctx, queued.ID)

	cancel()

	waitForStatus(t, store, queued.ID, types.StatusCancelled)
	waitForStatus(t, store, blocker.ID, types.StatusCancelled)
}
