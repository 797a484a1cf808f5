package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/hitch/internal/logging"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can block a thread.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates thread access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.Store

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease of the distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new thread Manager over store.
func NewManager(store ports.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(threadID) after unlocking.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

// WithLock executes fn while holding the lock for the thread.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	if threadID == "" {
		return domain.ErrMissingThreadID
	}

	entry := m.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(threadID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, threadID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Release even when ctx was canceled by the caller.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves a thread record. It does not take the thread lock, so it
// may be called while a run holds it; store writes are atomic per record.
func (m *Manager) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	if threadID == "" {
		return nil, domain.ErrMissingThreadID
	}
	return m.store.LoadThread(ctx, threadID)
}

// Delete removes the thread and its checkpoints.
// Deleting an unknown thread returns domain.ErrThreadNotFound.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	return m.WithLock(ctx, threadID, func(ctx context.Context) error {
		if _, err := m.store.LoadThread(ctx, threadID); err != nil {
			if !errors.Is(err, domain.ErrThreadNotFound) {
				return err
			}
			// A thread may have checkpoints without a record if a run died early.
			cps, listErr := m.store.List(ctx, threadID)
			if listErr != nil || len(cps) == 0 {
				return err
			}
		}
		return m.store.DeleteThread(ctx, threadID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.ListThreads(ctx)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.Store {
	return m.store
}
