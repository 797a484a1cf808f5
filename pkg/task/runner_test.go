package task_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/hitch/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	reg := task.NewRegistry()
	fn := func(ctx context.Context, args any) (any, error) { return args, nil }

	require.NoError(t, reg.Register("echo", fn, task.WithDescription("returns its input")))
	assert.True(t, reg.Has("echo"))
	assert.Equal(t, "returns its input", reg.Describe("echo"))

	err := reg.Register("echo", fn)
	assert.ErrorIs(t, err, task.ErrDuplicateTask)

	assert.Error(t, reg.Register("", fn))
	assert.Error(t, reg.Register("nil", nil))

	require.NoError(t, reg.Register("another", fn))
	assert.Equal(t, []string{"another", "echo"}, reg.Names())
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := task.NewRegistry()
	fn := func(ctx context.Context, args any) (any, error) { return nil, nil }
	reg.MustRegister("x", fn)
	assert.Panics(t, func() { reg.MustRegister("x", fn) })
}

func TestRunner_RunsConcurrently(t *testing.T) {
	reg := task.NewRegistry()
	var running atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	reg.MustRegister("slow", func(ctx context.Context, args any) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return args, nil
	})

	runner := task.NewRunner(reg)
	ctx := context.Background()

	futures := []*task.Future{
		runner.Run(ctx, "slow", 1),
		runner.Run(ctx, "slow", 2),
		runner.Run(ctx, "slow", 3),
	}

	require.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)

	for i, f := range futures {
		v, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, i+1, v)
	}
	assert.Equal(t, int32(3), peak.Load())
}

func TestRunner_UnknownTask(t *testing.T) {
	runner := task.NewRunner(task.NewRegistry())

	_, err := runner.Run(context.Background(), "missing", nil).Result()
	assert.ErrorIs(t, err, task.ErrUnknownTask)

	var taskErr *task.Error
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, "missing", taskErr.Task)
}

func TestRunner_WrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	reg := task.NewRegistry()
	reg.MustRegister("fail", func(ctx context.Context, args any) (any, error) { return nil, boom })

	_, err := task.NewRunner(reg).Run(context.Background(), "fail", nil).Result()
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "task fail: boom")
}

func TestRunner_RecoversPanics(t *testing.T) {
	reg := task.NewRegistry()
	reg.MustRegister("panic", func(ctx context.Context, args any) (any, error) { panic("kaboom") })

	_, err := task.NewRunner(reg).Run(context.Background(), "panic", nil).Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRunner_Timeout(t *testing.T) {
	reg := task.NewRegistry()
	block := make(chan struct{})
	defer close(block)

	// Ignores its context on purpose.
	reg.MustRegister("stuck", func(ctx context.Context, args any) (any, error) {
		<-block
		return "late", nil
	}, task.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := task.NewRunner(reg).Run(context.Background(), "stuck", nil).Result()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunner_DefaultTimeout(t *testing.T) {
	reg := task.NewRegistry()
	reg.MustRegister("wait", func(ctx context.Context, args any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	runner := task.NewRunner(reg, task.WithDefaultTimeout(10*time.Millisecond))
	_, err := runner.Run(context.Background(), "wait", nil).Result()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_Wait(t *testing.T) {
	reg := task.NewRegistry()
	release := make(chan struct{})
	reg.MustRegister("gate", func(ctx context.Context, args any) (any, error) {
		<-release
		return "ok", nil
	})

	f := task.NewRunner(reg).Run(context.Background(), "gate", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, "gate", f.Name())
}

func TestResolved(t *testing.T) {
	f := task.Resolved("cached", "value", nil)
	select {
	case <-f.Done():
	default:
		t.Fatal("resolved future must be done")
	}
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Zero(t, f.Elapsed())
}
