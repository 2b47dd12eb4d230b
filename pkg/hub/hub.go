// Package hub provides the channel-based pub/sub relay that fans task state
// transitions out to live subscribers without blocking the publisher.
//
// Delivery is lossy at-most-once by design: each subscription carries a
// bounded buffer, and when a subscriber falls behind the oldest buffered
// event is dropped to make room for the newest one. Subscribers can always
// re-sync by querying the task store directly, and the drop counter on the
// subscription makes overflow observable rather than indistinguishable from
// an idle connection.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// DefaultBufferSize is the per-subscriber event buffer size.
const DefaultBufferSize = 64

// ErrClosed is returned when subscribing to a hub that has been shut down.
var ErrClosed = errors.New("hub is closed")

// Filter selects which task events a subscription receives.
// The zero value matches all tasks.
type Filter struct {
	// TaskID restricts the subscription to a single task when non-empty.
	TaskID string
}

// matches reports whether an event passes the filter.
func (f Filter) matches(ev types.TaskEvent) bool {
	return f.TaskID == "" || f.TaskID == ev.TaskID
}

// Subscription is a live registration for task events. Events are received
// from Events() until Unsubscribe or Close closes the channel.
type Subscription struct {
	id      string
	filter  Filter
	events  chan types.TaskEvent
	dropped atomic.Uint64
	once    sync.Once
}

// Events returns the channel events are delivered on. The channel is closed
// when the subscription is released.
func (s *Subscription) Events() <-chan types.TaskEvent {
	return s.events
}

// Dropped returns how many events were discarded because this subscriber's
// buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.events)
	})
}

// Hub fans task events out to all matching subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	bufSize int
	closed  bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber buffer size.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// NewHub creates a hub with no subscribers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:    make(map[string]*Subscription),
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber. Only events published after
// subscription are delivered; callers needing the current state should query
// the task store first.
func (h *Hub) Subscribe(filter Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		id:     uuid.New().String(),
		filter: filter,
		events: make(chan types.TaskEvent, h.bufSize),
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers the event to every live subscriber whose filter matches.
// It never blocks: when a subscriber's buffer is full the oldest buffered
// event is dropped so the newest transition is still delivered.
func (h *Hub) Publish(ev types.TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, sub := range h.subs {
		if !sub.filter.matches(ev) {
			continue
		}
		h.send(sub, ev)
	}
}

func (h *Hub) send(sub *Subscription, ev types.TaskEvent) {
	select {
	case sub.events <- ev:
		return
	default:
	}

	// Buffer full: make room by discarding the oldest event, then retry once.
	// A concurrent consumer read can empty the slot for us, so both selects
	// stay non-blocking.
	select {
	case <-sub.events:
		sub.dropped.Add(1)
	default:
	}
	select {
	case sub.events <- ev:
	default:
		sub.dropped.Add(1)
	}
}

// Unsubscribe releases the subscription and closes its channel.
// Safe to call multiple times and with subscriptions from a closed hub.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()

	sub.close()
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts the hub down and closes all subscriber channels.
// Safe to call multiple times.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
}
