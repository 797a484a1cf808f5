package task

import (
	"context"
	"time"
)

// Future is the pending result of a task.
type Future struct {
	name    string
	done    chan struct{}
	value   any
	err     error
	elapsed time.Duration
}

func newFuture(name string) *Future {
	return &Future{name: name, done: make(chan struct{})}
}

// Resolved returns a Future that is already complete.
func Resolved(name string, value any, err error) *Future {
	f := newFuture(name)
	f.resolve(value, err, 0)
	return f
}

func (f *Future) resolve(value any, err error, elapsed time.Duration) {
	f.value, f.err, f.elapsed = value, err, elapsed
	close(f.done)
}

// Name returns the task name.
func (f *Future) Name() string {
	return f.name
}

// Done is closed once the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the task finishes.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait is like Result but gives up when ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Elapsed reports how long the task ran. Valid once Done is closed.
func (f *Future) Elapsed() time.Duration {
	<-f.done
	return f.elapsed
}
