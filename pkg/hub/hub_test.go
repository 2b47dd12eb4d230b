package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

func event(taskID string, status types.TaskStatus) types.TaskEvent {
	return types.TaskEvent{
		TaskID:    taskID,
		Status:    status,
		Timestamp: time.Now(),
	}
}

func TestHub_PublishToAllSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub, err := h.Subscribe(Filter{})
	require.NoError(t, err)

	h.Publish(event("t1", types.StatusRunning))
	h.Publish(event("t2", types.StatusRunning))

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, "t1", first.TaskID)
	assert.Equal(t, "t2", second.TaskID)
}

func TestHub_FilterByTaskID(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub, err := h.Subscribe(Filter{TaskID: "t1"})
	require.NoError(t, err)

	h.Publish(event("t2", types.StatusRunning))
	h.Publish(event("t1", types.StatusCompleted))

	got := <-sub.Events()
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, types.StatusCompleted, got.Status)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event for %s", ev.TaskID)
	default:
	}
}

func TestHub_OrderPreservedPerTask(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub, err := h.Subscribe(Filter{TaskID: "t1"})
	require.NoError(t, err)

	h.Publish(event("t1", types.StatusPending))
	h.Publish(event("t1", types.StatusRunning))
	h.Publish(event("t1", types.StatusCompleted))

	want := []types.TaskStatus{types.StatusPending, types.StatusRunning, types.StatusCompleted}
	for _, status := range want {
		got := <-sub.Events()
		assert.Equal(t, status, got.Status)
	}
}

func TestHub_OverflowDropsOldest(t *testing.T) {
	h := NewHub(WithBufferSize(2))
	defer h.Close()

	sub, err := h.Subscribe(Filter{})
	require.NoError(t, err)

	h.Publish(event("t1", types.StatusPending))
	h.Publish(event("t1", types.StatusRunning))
	// Buffer is full; this drops the pending event.
	h.Publish(event("t1", types.StatusCompleted))

	assert.Equal(t, uint64(1), sub.Dropped())

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, types.StatusRunning, first.Status, "oldest event dropped, not newest")
	assert.Equal(t, types.StatusCompleted, second.Status)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(WithBufferSize(1))
	defer h.Close()

	_, err := h.Subscribe(Filter{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish(event("t1", types.StatusRunning))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub, err := h.Subscribe(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // must not panic
	h.Unsubscribe(nil) // must not panic
	assert.Equal(t, 0, h.SubscriberCount())

	_, open := <-sub.Events()
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestHub_Close(t *testing.T) {
	h := NewHub()

	sub, err := h.Subscribe(Filter{})
	require.NoError(t, err)

	h.Close()
	h.Close() // idempotent

	_, open := <-sub.Events()
	assert.False(t, open)

	_, err = h.Subscribe(Filter{})
	assert.ErrorIs(t, err, ErrClosed)

	// Publishing after close is a no-op, not a panic.
	h.Publish(event("t1", types.StatusRunning))
}
