// Package file provides a Store backed by the local filesystem.
//
// Layout under the base path:
//
//	<thread-id>/thread.json              thread record (atomic replace)
//	<thread-id>/checkpoints/00000003.json one file per checkpoint (create-once)
//
// Checkpoint files are published with a hard link, which fails when the
// target exists, so conflict detection also holds between processes
// sharing the directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/hitch/pkg/domain"
)

const (
	threadFile     = "thread.json"
	checkpointsDir = "checkpoints"
)

// Store implements ports.Store using the local filesystem.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".hitch/threads".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".hitch", "threads")
	}
	return &Store{BasePath: basePath}
}

// Append writes the checkpoint to its own file. An existing file for the
// same index yields domain.ErrCheckpointConflict.
func (s *Store) Append(ctx context.Context, threadID string, cp domain.Checkpoint) error {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return err
	}
	dir = filepath.Join(dir, checkpointsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure checkpoint directory: %w", err)
	}

	cp.ThreadID = threadID
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmpPath, err := writeTemp(dir, "tmp-checkpoint-*.json", data)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	destPath := filepath.Join(dir, fmt.Sprintf("%08d.json", cp.Index))
	if err := os.Link(tmpPath, destPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return domain.ErrCheckpointConflict
		}
		return fmt.Errorf("failed to publish checkpoint: %w", err)
	}
	return nil
}

// List reads every checkpoint file of the thread, ordered by index.
func (s *Store) List(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return nil, err
	}
	dir = filepath.Join(dir, checkpointsDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Checkpoint{}, nil
		}
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	cps := make([]domain.Checkpoint, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint %s: %w", name, err)
		}
		var cp domain.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", name, err)
		}
		cps = append(cps, cp)
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Index < cps[j].Index })
	return cps, nil
}

// SaveThread persists the thread record to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) SaveThread(ctx context.Context, thread *domain.Thread) error {
	dir, err := s.threadDir(thread.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure thread directory: %w", err)
	}

	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	tmpPath, err := writeTemp(dir, "tmp-thread-*.json", data)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	destPath := filepath.Join(dir, threadFile)

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing thread file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to thread file: %w", err)
	}
	return nil
}

// LoadThread retrieves the thread record from its JSON file.
func (s *Store) LoadThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, threadFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to read thread file: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &thread, nil
}

// DeleteThread removes the thread directory.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	dir, err := s.threadDir(threadID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// ListThreads returns the IDs of directories holding a thread record.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var threads []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.BasePath, entry.Name(), threadFile)); err == nil {
			threads = append(threads, entry.Name())
		}
	}
	return threads, nil
}

func (s *Store) threadDir(threadID string) (string, error) {
	if threadID == "" {
		return "", domain.ErrMissingThreadID
	}
	if threadID == "." || threadID == ".." || strings.ContainsAny(threadID, `/\`) {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(s.BasePath, threadID), nil
}

// writeTemp writes data to a synced temp file in dir and returns its path.
func writeTemp(dir, pattern string, data []byte) (string, error) {
	tmpFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}
