// Package task provides the in-memory registry of task records. The store is
// the single source of truth for status queries: all reads return snapshots
// and all mutations go through an atomic read-modify-write under the store
// lock. The store never calls into the executor or the notification hub, so
// its operations complete in bounded time.
package task

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aiassistantthx/browser-ai-backend/pkg/types"
)

// DefaultRetention is how long terminal task records are kept before they
// become eligible for eviction.
const DefaultRetention = time.Hour

// Store is a concurrency-safe keyed registry of task records.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*types.Task
	retention time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetention sets how long terminal records are retained before eviction.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tasks:     make(map[string]*types.Task),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new pending task for the given instruction and returns
// a snapshot of it. The id is a fresh UUID, never reused.
func (s *Store) Create(instruction types.Instruction) types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	t := &types.Task{
		ID:          uuid.New().String(),
		Status:      types.StatusPending,
		Instruction: instruction,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[t.ID] = t
	return t.Clone()
}

// Get returns a point-in-time copy of the task, or types.ErrNotFound.
func (s *Store) Get(id string) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return types.Task{}, types.ErrNotFound
	}
	return t.Clone(), nil
}

// Update applies mutate to the task under the store lock. Two concurrent
// updates to the same id cannot interleave, and no reader observes a
// partially-applied transition. If mutate returns an error the record is
// left untouched and the error is returned to the caller.
//
// UpdatedAt is advanced automatically after a successful mutation.
func (s *Store) Update(id string, mutate func(*types.Task) error) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return types.Task{}, types.ErrNotFound
	}

	// Mutate a copy so a failed mutation cannot leave the record half-written.
	scratch := t.Clone()
	if err := mutate(&scratch); err != nil {
		return t.Clone(), err
	}
	scratch.UpdatedAt = s.now().UTC()

	*t = scratch
	return t.Clone(), nil
}

// List returns snapshots of all tasks, newest first.
func (s *Store) List() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// EvictExpired removes terminal records whose last update is older than the
// retention window and returns how many were removed. Pending and running
// tasks are never evicted.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, t := range s.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
