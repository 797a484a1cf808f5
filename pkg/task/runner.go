package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/hitch/internal/logging"
)

// Error wraps a failure of a named task.
type Error struct {
	Task string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes registered tasks on their own goroutines.
type Runner struct {
	registry       *Registry
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDefaultTimeout applies to tasks registered without their own timeout.
func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.defaultTimeout = d
	}
}

// WithLogger sets the logger used for task diagnostics.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner over registry.
func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the runner dispatches from.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run starts the named task and returns immediately.
// An unknown name yields an already-resolved Future carrying ErrUnknownTask.
func (r *Runner) Run(ctx context.Context, name string, args any) *Future {
	f := newFuture(name)

	def, ok := r.registry.lookup(name)
	if !ok {
		f.resolve(nil, &Error{Task: name, Err: ErrUnknownTask}, 0)
		return f
	}

	timeout := def.timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	go r.execute(ctx, f, def, timeout, args)
	return f
}

type outcome struct {
	value any
	err   error
}

func (r *Runner) execute(ctx context.Context, f *Future, def definition, timeout time.Duration, args any) {
	start := time.Now()

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("task panicked", "task", def.name, "panic", p)
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := def.fn(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			f.resolve(nil, &Error{Task: def.name, Err: o.err}, time.Since(start))
			return
		}
		f.resolve(o.value, nil, time.Since(start))
	case <-ctx.Done():
		// The function may keep running; its result is discarded.
		r.logger.Debug("task abandoned", "task", def.name, "err", ctx.Err())
		f.resolve(nil, &Error{Task: def.name, Err: ctx.Err()}, time.Since(start))
	}
}
