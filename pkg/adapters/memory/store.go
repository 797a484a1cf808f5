// Package memory provides an in-process Store, useful for tests and
// single-process deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/hitch/pkg/domain"
)

// Store implements ports.Store in memory.
// Safe for concurrent use.
type Store struct {
	threads     map[string]*domain.Thread
	checkpoints map[string][]domain.Checkpoint
	mu          sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		threads:     make(map[string]*domain.Thread),
		checkpoints: make(map[string][]domain.Checkpoint),
	}
}

// Append records a checkpoint, rejecting a duplicate (thread, index).
func (s *Store) Append(ctx context.Context, threadID string, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.checkpoints[threadID]
	pos := sort.Search(len(log), func(i int) bool { return log[i].Index >= cp.Index })
	if pos < len(log) && log[pos].Index == cp.Index {
		return domain.ErrCheckpointConflict
	}

	cp = cp.Clone()
	cp.ThreadID = threadID
	log = append(log, domain.Checkpoint{})
	copy(log[pos+1:], log[pos:])
	log[pos] = cp
	s.checkpoints[threadID] = log
	return nil
}

// List returns copies of the thread's checkpoints ordered by index.
func (s *Store) List(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.checkpoints[threadID]
	out := make([]domain.Checkpoint, len(log))
	for i, cp := range log {
		out[i] = cp.Clone()
	}
	return out, nil
}

// SaveThread persists a copy of the thread record.
func (s *Store) SaveThread(ctx context.Context, thread *domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = thread.Clone()
	return nil
}

// LoadThread retrieves a copy of the thread record.
func (s *Store) LoadThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return thread.Clone(), nil
}

// DeleteThread removes the thread record and its checkpoints.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	delete(s.checkpoints, threadID)
	return nil
}

// ListThreads returns all thread IDs in lexical order.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
