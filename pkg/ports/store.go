package ports

import (
	"context"

	"github.com/aretw0/hitch/pkg/domain"
)

// CheckpointStore is the append-only log of step results.
type CheckpointStore interface {
	// Append records a checkpoint. It returns domain.ErrCheckpointConflict if a
	// checkpoint with the same (thread, index) already exists; the existing
	// record is left untouched.
	Append(ctx context.Context, threadID string, cp domain.Checkpoint) error

	// List returns the checkpoints of a thread ordered by index.
	// An unknown thread yields an empty list, not an error.
	List(ctx context.Context, threadID string) ([]domain.Checkpoint, error)
}

// ThreadStore persists thread records.
type ThreadStore interface {
	// SaveThread creates or replaces the thread record.
	SaveThread(ctx context.Context, thread *domain.Thread) error

	// LoadThread retrieves a thread record.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	LoadThread(ctx context.Context, threadID string) (*domain.Thread, error)

	// DeleteThread removes the thread record and all of its checkpoints.
	DeleteThread(ctx context.Context, threadID string) error

	// ListThreads returns the IDs of all known threads.
	ListThreads(ctx context.Context) ([]string, error)
}

// Store is implemented by every storage adapter.
type Store interface {
	CheckpointStore
	ThreadStore
}
