package hitch

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/hitch/internal/logging"
	"github.com/aretw0/hitch/internal/runtime"
	"github.com/aretw0/hitch/pkg/adapters/memory"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/ports"
	"github.com/aretw0/hitch/pkg/task"
	"github.com/aretw0/hitch/pkg/thread"
)

type (
	// Entrypoint is the body of a workflow.
	Entrypoint = runtime.Entrypoint
	// Context is handed to a workflow body to issue steps.
	Context = runtime.Context
	// Future is the pending result of a step.
	Future = runtime.Future
	// Final separates the returned value from the value saved for the next run.
	Final = runtime.Final
)

// ErrInterrupted is returned by Context.Interrupt when the run must suspend.
var ErrInterrupted = runtime.ErrInterrupted

// Await waits for f and decodes its value into T.
func Await[T any](f *Future) (T, error) {
	return runtime.Await[T](f)
}

// InterruptAs suspends the run and decodes the human reply into T.
func InterruptAs[T any](wf *Context, payload any) (T, error) {
	return runtime.InterruptAs[T](wf, payload)
}

// Engine is the high-level entry point for the Hitch library.
// It wraps the internal runtime with per-thread locking and a simplified API.
type Engine struct {
	runtime  *runtime.Engine
	threads  *thread.Manager
	store    ports.Store
	registry *task.Registry

	name        string
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	taskTimeout time.Duration

	// yielding holds the IDs of threads whose Stream loop body is running.
	yielding sync.Map
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the persistence backend (default: in-memory).
func WithStore(store ports.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLocker enables cross-process locking of threads.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets the lease of the distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithTaskTimeout bounds tasks registered without their own timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.taskTimeout = d
	}
}

// WithName names the workflow in events and logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// New creates an Engine running entry with the tasks of registry.
func New(entry Entrypoint, registry *task.Registry, opts ...Option) (*Engine, error) {
	if entry == nil {
		return nil, fmt.Errorf("entrypoint is required")
	}
	if registry == nil {
		registry = task.NewRegistry()
	}

	eng := &Engine{
		registry: registry,
		name:     "workflow",
		lockTTL:  thread.DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("workflow", eng.name)

	threadOpts := []thread.Option{
		thread.WithLogger(eng.logger),
		thread.WithLockTTL(eng.lockTTL),
	}
	if eng.locker != nil {
		threadOpts = append(threadOpts, thread.WithLocker(eng.locker))
	}
	eng.threads = thread.NewManager(eng.store, threadOpts...)

	runner := task.NewRunner(registry,
		task.WithDefaultTimeout(eng.taskTimeout),
		task.WithLogger(eng.logger),
	)
	eng.runtime = runtime.NewEngine(entry, runner, eng.store,
		runtime.WithName(eng.name),
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	)
	return eng, nil
}

// Invoke starts or continues the thread named by cfg with input.
//
// A domain.Command input resumes a pending interrupt. A nil input on a thread
// whose last run aborted retries that run; committed steps are not re-executed.
func (e *Engine) Invoke(ctx context.Context, cfg domain.ThreadConfig, input any) (*domain.Result, error) {
	return e.execute(ctx, runtime.Request{ThreadID: cfg.ThreadID, Input: input, Metadata: cfg.Metadata}, nil)
}

// Resume answers the pending interrupt of the thread with value.
// It returns domain.ErrNoPendingInterrupt if the thread is not waiting.
func (e *Engine) Resume(ctx context.Context, cfg domain.ThreadConfig, value any) (*domain.Result, error) {
	return e.execute(ctx, runtime.Request{ThreadID: cfg.ThreadID, Resume: &domain.Command{Resume: value}, Metadata: cfg.Metadata}, nil)
}

// Stream is Invoke delivering events as they happen.
// Breaking out of the loop cancels the run; steps committed so far stay committed.
//
// The loop body runs while the thread is locked. Thread and Checkpoints may be
// called from it. Invoke, Resume, Stream and Delete on the same thread return
// domain.ErrStreamReentry until the body returns.
func (e *Engine) Stream(ctx context.Context, cfg domain.ThreadConfig, input any) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var mu sync.Mutex
		stopped := false
		emit := func(ev domain.Event) {
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				return
			}
			ok := func() bool {
				e.yielding.Store(cfg.ThreadID, struct{}{})
				defer e.yielding.Delete(cfg.ThreadID)
				return yield(ev, nil)
			}()
			if !ok {
				stopped = true
				cancel()
			}
		}

		_, err := e.execute(ctx, runtime.Request{ThreadID: cfg.ThreadID, Input: input, Metadata: cfg.Metadata}, emit)

		mu.Lock()
		defer mu.Unlock()
		if err != nil && !stopped {
			yield(domain.Event{}, err)
		}
	}
}

func (e *Engine) execute(ctx context.Context, req runtime.Request, emit runtime.EmitFunc) (*domain.Result, error) {
	if err := e.checkReentry(req.ThreadID); err != nil {
		return nil, err
	}
	var result *domain.Result
	err := e.threads.WithLock(ctx, req.ThreadID, func(ctx context.Context) error {
		var err error
		result, err = e.runtime.Execute(ctx, req, emit)
		return err
	})
	return result, err
}

// Checkpoints returns the checkpoint log of a thread ordered by index.
func (e *Engine) Checkpoints(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	return e.store.List(ctx, threadID)
}

// Thread returns the thread record. It does not wait for a running thread.
func (e *Engine) Thread(ctx context.Context, threadID string) (*domain.Thread, error) {
	return e.threads.Load(ctx, threadID)
}

// Threads lists known thread IDs.
func (e *Engine) Threads(ctx context.Context) ([]string, error) {
	return e.threads.List(ctx)
}

// Delete removes a thread and its checkpoints.
func (e *Engine) Delete(ctx context.Context, threadID string) error {
	if err := e.checkReentry(threadID); err != nil {
		return err
	}
	return e.threads.Delete(ctx, threadID)
}

// checkReentry fails calls that would wait on a lock held by a Stream whose
// loop body is running, as they would never be granted.
func (e *Engine) checkReentry(threadID string) error {
	if _, busy := e.yielding.Load(threadID); busy {
		return fmt.Errorf("thread '%s': %w", threadID, domain.ErrStreamReentry)
	}
	return nil
}

// Store returns the persistence backend.
func (e *Engine) Store() ports.Store {
	return e.store
}

// Registry returns the task registry.
func (e *Engine) Registry() *task.Registry {
	return e.registry
}

// Name returns the workflow name.
func (e *Engine) Name() string {
	return e.name
}
