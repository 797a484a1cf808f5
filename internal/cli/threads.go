package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/thread"
)

// withManager opens the configured store and hands a thread manager to fn.
func withManager(ctx context.Context, opts Options, fn func(*thread.Manager) error) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.Debug)
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close store", "err", err)
		}
	}()

	mgrOpts := []thread.Option{thread.WithLogger(logger)}
	if backend.Locker != nil {
		mgrOpts = append(mgrOpts, thread.WithLocker(backend.Locker))
	}
	if ttl := cfg.LockTTLDuration(); ttl > 0 {
		mgrOpts = append(mgrOpts, thread.WithLockTTL(ttl))
	}
	return fn(thread.NewManager(backend.Store, mgrOpts...))
}

// ListThreads prints the stored threads with their status.
func ListThreads(ctx context.Context, opts Options) error {
	return withManager(ctx, opts, func(m *thread.Manager) error {
		ids, err := m.List(ctx)
		if err != nil {
			return fmt.Errorf("error listing threads: %w", err)
		}
		out := opts.stdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No threads found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "THREAD\tWORKFLOW\tSTATUS\tRUNS\tUPDATED")
		for _, id := range ids {
			th, err := m.Load(ctx, id)
			if errors.Is(err, domain.ErrThreadNotFound) {
				// Removed since the listing, or expired.
				continue
			}
			if err != nil {
				return fmt.Errorf("error loading thread '%s': %w", id, err)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				th.ID, th.Metadata[MetadataWorkflow], th.Status, th.Run, th.UpdatedAt.Format(time.DateTime))
		}
		return tw.Flush()
	})
}

// threadView is the inspect output: the thread record and its checkpoint log.
type threadView struct {
	Thread      *domain.Thread      `json:"thread"`
	Checkpoints []domain.Checkpoint `json:"checkpoints"`
}

// InspectThread prints a thread and its checkpoints as indented JSON.
func InspectThread(ctx context.Context, opts Options, threadID string) error {
	return withManager(ctx, opts, func(m *thread.Manager) error {
		th, err := m.Load(ctx, threadID)
		if err != nil {
			return fmt.Errorf("error loading thread '%s': %w", threadID, err)
		}
		cps, err := m.Store().List(ctx, threadID)
		if err != nil {
			return fmt.Errorf("error listing checkpoints of '%s': %w", threadID, err)
		}

		data, err := json.MarshalIndent(threadView{Thread: th, Checkpoints: cps}, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling thread: %w", err)
		}
		fmt.Fprintln(opts.stdout(), string(data))
		return nil
	})
}

// RemoveThreads deletes threads and their checkpoints. Every ID is attempted;
// the failures are joined into the returned error.
func RemoveThreads(ctx context.Context, opts Options, threadIDs ...string) error {
	return withManager(ctx, opts, func(m *thread.Manager) error {
		out := opts.stdout()
		var errs []error
		for _, id := range threadIDs {
			if err := m.Delete(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(out, "Removed thread '%s'\n", id)
		}
		return errors.Join(errs...)
	})
}
