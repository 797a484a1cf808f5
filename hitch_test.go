package hitch_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/adapters/file"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func essayWorkflow(wf *hitch.Context, input any) (any, error) {
	essay, err := hitch.Await[string](wf.Task("write_essay", input))
	if err != nil {
		return nil, err
	}
	approved, err := wf.Interrupt(map[string]any{
		"essay":  essay,
		"action": "Please approve/reject the essay",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"essay": essay, "is_approved": approved}, nil
}

func essayRegistry(calls *atomic.Int32) *task.Registry {
	reg := task.NewRegistry()
	reg.MustRegister("write_essay", func(ctx context.Context, args any) (any, error) {
		calls.Add(1)
		return fmt.Sprintf("An essay about topic: %v", args), nil
	})
	return reg
}

func TestEngine_InvokeAndResume(t *testing.T) {
	var calls atomic.Int32
	eng, err := hitch.New(essayWorkflow, essayRegistry(&calls), hitch.WithName("essay"))
	require.NoError(t, err)

	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "essay-1"}

	res, err := eng.Invoke(ctx, cfg, "cat")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultInterrupted, res.Status)
	assert.Equal(t, "Please approve/reject the essay", res.Payload.(map[string]any)["action"])

	res, err = eng.Resume(ctx, cfg, "approved")
	require.NoError(t, err)
	assert.Equal(t, &domain.Result{
		ThreadID: "essay-1",
		Status:   domain.ResultCompleted,
		Value: map[string]any{
			"essay":       "An essay about topic: cat",
			"is_approved": "approved",
		},
	}, res)

	cps, err := eng.Checkpoints(ctx, "essay-1")
	require.NoError(t, err)
	assert.Len(t, cps, 2)
	assert.Equal(t, int32(1), calls.Load())

	_, err = eng.Resume(ctx, cfg, "again")
	assert.ErrorIs(t, err, domain.ErrNoPendingInterrupt)

	th, err := eng.Thread(ctx, "essay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, th.Status)
}

func TestEngine_SurvivesRestart(t *testing.T) {
	var calls atomic.Int32
	dir := filepath.Join(t.TempDir(), "threads")
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "durable"}

	first, err := hitch.New(essayWorkflow, essayRegistry(&calls), hitch.WithStore(file.New(dir)))
	require.NoError(t, err)
	res, err := first.Invoke(ctx, cfg, "dog")
	require.NoError(t, err)
	require.True(t, res.Interrupted())

	// A new engine over the same directory stands in for a new process.
	second, err := hitch.New(essayWorkflow, essayRegistry(&calls), hitch.WithStore(file.New(dir)))
	require.NoError(t, err)
	res, err = second.Invoke(ctx, cfg, domain.Command{Resume: "rejected"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", res.Value.(map[string]any)["is_approved"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestEngine_Stream(t *testing.T) {
	var calls atomic.Int32
	eng, err := hitch.New(essayWorkflow, essayRegistry(&calls))
	require.NoError(t, err)

	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "stream"}

	var types []domain.EventType
	for ev, err := range eng.Stream(ctx, cfg, "cat") {
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{domain.EventCheckpoint, domain.EventInterrupt}, types)

	types = nil
	for ev, err := range eng.Stream(ctx, cfg, domain.Command{Resume: "approved"}) {
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{domain.EventCheckpoint, domain.EventCompleted}, types)
}

func TestEngine_StreamReportsErrors(t *testing.T) {
	eng, err := hitch.New(essayWorkflow, task.NewRegistry())
	require.NoError(t, err)

	var got error
	for _, err := range eng.Stream(context.Background(), domain.ThreadConfig{ThreadID: "t"}, "cat") {
		got = err
	}
	assert.ErrorIs(t, got, task.ErrUnknownTask)
}

func TestEngine_StreamBreakStopsRun(t *testing.T) {
	reg := task.NewRegistry()
	var second atomic.Int32
	reg.MustRegister("first", func(ctx context.Context, args any) (any, error) { return "one", nil })
	reg.MustRegister("second", func(ctx context.Context, args any) (any, error) {
		second.Add(1)
		return "two", nil
	})

	workflow := func(wf *hitch.Context, input any) (any, error) {
		if _, err := wf.Task("first", nil).Result(); err != nil {
			return nil, err
		}
		return wf.Task("second", nil).Result()
	}
	eng, err := hitch.New(workflow, reg)
	require.NoError(t, err)

	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "t"}
	for range eng.Stream(ctx, cfg, "go") {
		break
	}

	cps, err := eng.Checkpoints(ctx, "t")
	require.NoError(t, err)
	require.Len(t, cps, 1, "steps after the break must not be committed")

	res, err := eng.Invoke(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", res.Value)
}

func TestEngine_SerializesInvocationsPerThread(t *testing.T) {
	reg := task.NewRegistry()
	var inside, overlap atomic.Int32
	reg.MustRegister("work", func(ctx context.Context, args any) (any, error) {
		if inside.Add(1) > 1 {
			overlap.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		inside.Add(-1)
		return args, nil
	})
	workflow := func(wf *hitch.Context, input any) (any, error) {
		return wf.Task("work", input).Result()
	}
	eng, err := hitch.New(workflow, reg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = eng.Invoke(context.Background(), domain.ThreadConfig{ThreadID: "busy"}, i)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err, "the thread lock must prevent checkpoint conflicts")
	}
	assert.Zero(t, overlap.Load())

	cps, err := eng.Checkpoints(context.Background(), "busy")
	require.NoError(t, err)
	assert.Len(t, cps, 5, "each invocation is its own run")
}

func TestEngine_ThreadsAndDelete(t *testing.T) {
	var calls atomic.Int32
	eng, err := hitch.New(essayWorkflow, essayRegistry(&calls))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Invoke(ctx, domain.ThreadConfig{ThreadID: "a"}, "cat")
	require.NoError(t, err)
	_, err = eng.Invoke(ctx, domain.ThreadConfig{ThreadID: "b", Metadata: map[string]string{"user": "42"}}, "dog")
	require.NoError(t, err)

	ids, err := eng.Threads(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	th, err := eng.Thread(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "42", th.Metadata["user"])

	require.NoError(t, eng.Delete(ctx, "a"))
	_, err = eng.Thread(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	cps, err := eng.Checkpoints(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, cps)

	assert.True(t, errors.Is(eng.Delete(ctx, "a"), domain.ErrThreadNotFound))
}

func TestEngine_StreamBodyCallsEngine(t *testing.T) {
	var calls atomic.Int32
	eng, err := hitch.New(essayWorkflow, essayRegistry(&calls))
	require.NoError(t, err)
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "inside"}

	_, err = eng.Invoke(ctx, cfg, "cat")
	require.NoError(t, err)

	var (
		streamErr, loadErr, deleteErr, invokeErr error
		events                                   int
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, err := range eng.Stream(ctx, cfg, domain.Command{Resume: "approved"}) {
			if err != nil {
				streamErr = err
				return
			}
			events++
			_, loadErr = eng.Thread(ctx, "inside")
			deleteErr = eng.Delete(ctx, "inside")
			_, invokeErr = eng.Invoke(ctx, cfg, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine calls from the stream loop body did not return")
	}

	require.NoError(t, streamErr)
	assert.Equal(t, 2, events)
	assert.NoError(t, loadErr)
	assert.ErrorIs(t, deleteErr, domain.ErrStreamReentry)
	assert.ErrorIs(t, invokeErr, domain.ErrStreamReentry)

	th, err := eng.Thread(ctx, "inside")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, th.Status)
	require.NoError(t, eng.Delete(ctx, "inside"), "the thread is released once the loop ends")
}

func TestNew_RequiresEntrypoint(t *testing.T) {
	_, err := hitch.New(nil, nil)
	assert.Error(t, err)
}
