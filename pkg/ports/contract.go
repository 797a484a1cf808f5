package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	threadID := "contract-test-thread-" + time.Now().Format("20060102150405.000000000")

	checkpoint := func(id string, index int, name string) domain.Checkpoint {
		return domain.Checkpoint{
			ThreadID:  id,
			Index:     index,
			Name:      name,
			Kind:      domain.KindTask,
			Value:     json.RawMessage(fmt.Sprintf(`{"step":%d}`, index)),
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load Thread", func(t *testing.T) {
		thread := domain.NewThread(threadID)
		thread.Status = domain.StatusInterrupted
		thread.Run = 2
		thread.RunBase = 5
		thread.Input = json.RawMessage(`"cat"`)
		thread.Pending = &domain.Interrupt{ID: "i-1", Index: 6, Name: "interrupt", Payload: json.RawMessage(`{"action":"approve"}`)}

		require.NoError(t, store.SaveThread(ctx, thread), "SaveThread should not return error")

		loaded, err := store.LoadThread(ctx, threadID)
		require.NoError(t, err, "LoadThread should not return error")
		assert.Equal(t, domain.StatusInterrupted, loaded.Status)
		assert.Equal(t, 2, loaded.Run)
		assert.Equal(t, 5, loaded.RunBase)
		assert.JSONEq(t, `"cat"`, string(loaded.Input))
		require.NotNil(t, loaded.Pending)
		assert.Equal(t, 6, loaded.Pending.Index)
		assert.JSONEq(t, `{"action":"approve"}`, string(loaded.Pending.Payload))

		// The store must not alias the caller's record.
		thread.Status = domain.StatusCompleted
		again, err := store.LoadThread(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInterrupted, again.Status)
	})

	t.Run("Load Non-Existent Thread", func(t *testing.T) {
		_, err := store.LoadThread(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Append and List", func(t *testing.T) {
		id := threadID + "-log"
		defer func() { _ = store.DeleteThread(ctx, id) }()

		// Appended out of order on purpose; List sorts by index.
		require.NoError(t, store.Append(ctx, id, checkpoint(id, 1, "b")))
		require.NoError(t, store.Append(ctx, id, checkpoint(id, 0, "a")))
		require.NoError(t, store.Append(ctx, id, checkpoint(id, 3, "d")))

		cps, err := store.List(ctx, id)
		require.NoError(t, err)
		require.Len(t, cps, 3)
		assert.Equal(t, []int{0, 1, 3}, []int{cps[0].Index, cps[1].Index, cps[2].Index})
		assert.Equal(t, "a", cps[0].Name)
		assert.Equal(t, domain.KindTask, cps[0].Kind)
		assert.JSONEq(t, `{"step":0}`, string(cps[0].Value))
	})

	t.Run("List Unknown Thread", func(t *testing.T) {
		cps, err := store.List(ctx, "non-existent-"+threadID)
		require.NoError(t, err)
		assert.Empty(t, cps)
	})

	t.Run("Append Conflict", func(t *testing.T) {
		id := threadID + "-conflict"
		defer func() { _ = store.DeleteThread(ctx, id) }()

		require.NoError(t, store.Append(ctx, id, checkpoint(id, 0, "first")))

		err := store.Append(ctx, id, checkpoint(id, 0, "second"))
		assert.ErrorIs(t, err, domain.ErrCheckpointConflict)

		cps, err := store.List(ctx, id)
		require.NoError(t, err)
		require.Len(t, cps, 1)
		assert.Equal(t, "first", cps[0].Name, "the original checkpoint must survive a conflict")
	})

	t.Run("Concurrent Append Same Index", func(t *testing.T) {
		id := threadID + "-race"
		defer func() { _ = store.DeleteThread(ctx, id) }()

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		start := make(chan struct{})
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs[i] = store.Append(ctx, id, checkpoint(id, 0, fmt.Sprintf("writer-%d", i)))
			}()
		}
		close(start)
		wg.Wait()

		var ok, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrCheckpointConflict):
				conflicts++
			}
		}
		assert.Equal(t, 1, ok, "exactly one writer must win")
		assert.Equal(t, writers-1, conflicts)

		cps, err := store.List(ctx, id)
		require.NoError(t, err)
		assert.Len(t, cps, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		id := threadID + "-delete"
		require.NoError(t, store.SaveThread(ctx, domain.NewThread(id)))
		require.NoError(t, store.Append(ctx, id, checkpoint(id, 0, "a")))

		require.NoError(t, store.DeleteThread(ctx, id), "DeleteThread should not return error")

		_, err := store.LoadThread(ctx, id)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound, "LoadThread after DeleteThread should return ErrThreadNotFound")

		cps, err := store.List(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, cps, "checkpoints must be removed with the thread")

		// Index 0 is free again.
		require.NoError(t, store.Append(ctx, id, checkpoint(id, 0, "a")))
		require.NoError(t, store.DeleteThread(ctx, id))
	})

	t.Run("List Threads", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		require.NoError(t, store.SaveThread(ctx, domain.NewThread(id1)))
		require.NoError(t, store.SaveThread(ctx, domain.NewThread(id2)))

		defer func() {
			_ = store.DeleteThread(ctx, id1)
			_ = store.DeleteThread(ctx, id2)
		}()

		threads, err := store.ListThreads(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})
}
