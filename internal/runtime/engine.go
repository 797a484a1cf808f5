package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/hitch/internal/logging"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/ports"
	"github.com/aretw0/hitch/pkg/task"
)

// ErrInterrupted is returned by Context.Interrupt when the run must suspend.
// Workflows propagate it unchanged.
var ErrInterrupted = errors.New("workflow interrupted")

// Entrypoint is the body of a workflow.
type Entrypoint func(wf *Context, input any) (any, error)

// Final lets a workflow return one value to the caller and save another for
// the next run on the same thread.
type Final struct {
	Value any
	Save  any
}

// EmitFunc receives streaming events in step order.
type EmitFunc func(domain.Event)

// Request describes one invocation of a thread.
type Request struct {
	ThreadID string
	Input    any
	// Resume, when set, resumes the pending interrupt with Resume.Resume.
	// An Input of type domain.Command is treated the same way.
	Resume   *domain.Command
	Metadata map[string]string
}

// Engine runs one workflow against a store.
type Engine struct {
	name   string
	entry  Entrypoint
	runner *task.Runner
	store  ports.Store
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithName names the workflow in events and logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for entry.
func NewEngine(entry Entrypoint, runner *task.Runner, store ports.Store, opts ...Option) *Engine {
	e := &Engine{
		name:   "workflow",
		entry:  entry,
		runner: runner,
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the workflow name.
func (e *Engine) Name() string {
	return e.name
}

// Store returns the store the engine persists to.
func (e *Engine) Store() ports.Store {
	return e.store
}

// Execute performs one invocation: it starts, continues or resumes a run of
// the thread and returns when the run completes, suspends or fails.
//
// Callers must serialize Execute per thread (see package thread); concurrent
// executions of one thread are only detected through checkpoint conflicts.
func (e *Engine) Execute(ctx context.Context, req Request, emit EmitFunc) (*domain.Result, error) {
	if req.ThreadID == "" {
		return nil, domain.ErrMissingThreadID
	}
	if emit == nil {
		emit = func(domain.Event) {}
	}
	if req.Resume == nil {
		switch cmd := req.Input.(type) {
		case domain.Command:
			req.Resume = &cmd
		case *domain.Command:
			req.Resume = cmd
		}
	}

	thread, err := e.store.LoadThread(ctx, req.ThreadID)
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		thread = domain.NewThread(req.ThreadID)
		thread.CreatedAt = e.now()
	case err != nil:
		return nil, fmt.Errorf("load thread %s: %w", req.ThreadID, err)
	}

	cps, err := e.store.List(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints of %s: %w", thread.ID, err)
	}
	reconcile(thread, cps)

	input, resume, err := e.prepare(thread, cps, req)
	if err != nil {
		return nil, err
	}

	thread.Status = domain.StatusRunning
	thread.LastError = ""
	thread.UpdatedAt = e.now()
	for k, v := range req.Metadata {
		if thread.Metadata == nil {
			thread.Metadata = make(map[string]string)
		}
		thread.Metadata[k] = v
	}
	if resume != nil {
		// Stay interrupted on disk until the reply is committed.
		thread.Status = domain.StatusInterrupted
	}
	if err := e.store.SaveThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("save thread %s: %w", thread.ID, err)
	}

	previous, err := domain.Unmarshal(thread.Saved)
	if err != nil {
		return nil, fmt.Errorf("decode saved value of %s: %w", thread.ID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	x := &execution{
		engine:   e,
		ctx:      runCtx,
		thread:   thread,
		replay:   make(map[int]domain.Checkpoint),
		resume:   resume,
		emit:     emit,
		previous: previous,
	}
	for _, cp := range cps {
		if cp.Run == thread.Run && cp.Index >= thread.RunBase {
			x.replay[cp.Index] = cp
		}
	}

	start := e.now()
	runEvent := &domain.RunEvent{ThreadID: thread.ID, Run: thread.Run, Resumed: resume != nil}
	e.onRunStart(ctx, runEvent)
	e.logger.Debug("run started",
		"workflow", e.name,
		"thread_id", thread.ID,
		"run", thread.Run,
		"replayable_steps", len(x.replay),
		"resumed", resume != nil,
	)

	wf := &Context{ctx: runCtx, exec: x}
	value, runErr := e.invoke(wf, input)
	if runErr == nil {
		runErr = x.finish()
	}

	var result *domain.Result
	switch {
	case x.interrupt != nil && (runErr == nil || errors.Is(runErr, ErrInterrupted)):
		result, runErr = e.suspend(ctx, x)
	case runErr != nil:
		runErr = e.abort(ctx, x, runErr)
	default:
		result, runErr = e.complete(ctx, x, value)
	}

	runEvent.Status = thread.Status
	runEvent.Err = runErr
	runEvent.Duration = e.now().Sub(start)
	e.onRunFinish(ctx, runEvent)
	e.logger.Info("run finished",
		"workflow", e.name,
		"thread_id", thread.ID,
		"run", thread.Run,
		"status", thread.Status,
		"duration", runEvent.Duration,
		"err", runErr,
	)
	return result, runErr
}

// reconcile clears a pending interrupt whose reply was already committed by a
// run that died before saving the thread.
func reconcile(thread *domain.Thread, cps []domain.Checkpoint) {
	if thread.Pending == nil {
		return
	}
	for _, cp := range cps {
		if cp.Index == thread.Pending.Index && cp.Run == thread.Run && cp.Kind == domain.KindResume {
			thread.Pending = nil
			thread.Status = domain.StatusRunning
			return
		}
	}
}

// prepare decides which run this invocation belongs to and returns its input.
func (e *Engine) prepare(thread *domain.Thread, cps []domain.Checkpoint, req Request) (any, *resumeState, error) {
	if req.Resume != nil {
		if thread.Status != domain.StatusInterrupted || thread.Pending == nil {
			return nil, nil, fmt.Errorf("thread %s: %w", thread.ID, domain.ErrNoPendingInterrupt)
		}
		input, err := domain.Unmarshal(thread.Input)
		if err != nil {
			return nil, nil, fmt.Errorf("decode input of %s: %w", thread.ID, err)
		}
		return input, &resumeState{value: req.Resume.Resume, pending: thread.Pending}, nil
	}

	switch thread.Status {
	case domain.StatusInterrupted:
		return nil, nil, fmt.Errorf("thread %s: %w", thread.ID, domain.ErrPendingInterrupt)
	case domain.StatusRunning:
		if req.Input == nil {
			// Retry the aborted run; committed steps replay.
			input, err := domain.Unmarshal(thread.Input)
			if err != nil {
				return nil, nil, fmt.Errorf("decode input of %s: %w", thread.ID, err)
			}
			return input, nil, nil
		}
		thread.Run++
	case domain.StatusCompleted:
		thread.Run++
	}
	thread.RunBase = domain.NextIndex(cps)
	thread.Output = nil

	input, raw, err := domain.Normalize(req.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("thread %s: input: %w", thread.ID, err)
	}
	thread.Input = raw
	return input, nil, nil
}

func (e *Engine) invoke(wf *Context, input any) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("workflow panicked", "workflow", e.name, "thread_id", wf.ThreadID(), "panic", p)
			err = fmt.Errorf("workflow panic: %v", p)
		}
	}()
	return e.entry(wf, input)
}

func (e *Engine) suspend(ctx context.Context, x *execution) (*domain.Result, error) {
	thread := x.thread
	thread.Status = domain.StatusInterrupted
	thread.Pending = x.interrupt
	thread.UpdatedAt = e.now()
	if err := e.store.SaveThread(context.WithoutCancel(ctx), thread); err != nil {
		return nil, fmt.Errorf("save thread %s: %w", thread.ID, err)
	}

	e.onInterrupt(ctx, x.interrupt)
	payload, err := domain.Unmarshal(x.interrupt.Payload)
	if err != nil {
		return nil, err
	}
	x.emit(domain.Event{
		Type:      domain.EventInterrupt,
		ThreadID:  thread.ID,
		Index:     x.interrupt.Index,
		Name:      x.interrupt.Name,
		Value:     payload,
		Timestamp: thread.UpdatedAt,
	})
	return &domain.Result{
		ThreadID:    thread.ID,
		Status:      domain.ResultInterrupted,
		Payload:     payload,
		InterruptID: x.interrupt.ID,
	}, nil
}

func (e *Engine) abort(ctx context.Context, x *execution, cause error) error {
	thread := x.thread
	thread.LastError = cause.Error()
	thread.UpdatedAt = e.now()
	if x.resume != nil && !x.resume.used {
		// The reply was never consumed; the thread can be resumed again.
		thread.Status = domain.StatusInterrupted
		thread.Pending = x.resume.pending
	} else {
		thread.Status = domain.StatusRunning
		thread.Pending = nil
	}
	if err := e.store.SaveThread(context.WithoutCancel(ctx), thread); err != nil {
		e.logger.Warn("failed to record aborted run", "thread_id", thread.ID, "err", err)
	}
	return fmt.Errorf("thread %s: %w", thread.ID, cause)
}

func (e *Engine) complete(ctx context.Context, x *execution, value any) (*domain.Result, error) {
	ret, save := value, value
	switch f := value.(type) {
	case Final:
		ret, save = f.Value, f.Save
	case *Final:
		ret, save = f.Value, f.Save
	}

	out, rawOut, err := domain.Normalize(ret)
	if err != nil {
		return nil, e.abort(ctx, x, fmt.Errorf("return value: %w", err))
	}
	_, rawSave, err := domain.Normalize(save)
	if err != nil {
		return nil, e.abort(ctx, x, fmt.Errorf("saved value: %w", err))
	}

	thread := x.thread
	thread.Status = domain.StatusCompleted
	thread.Pending = nil
	thread.Output = rawOut
	thread.Saved = rawSave
	thread.UpdatedAt = e.now()
	if err := e.store.SaveThread(context.WithoutCancel(ctx), thread); err != nil {
		return nil, fmt.Errorf("save thread %s: %w", thread.ID, err)
	}

	x.emit(domain.Event{
		Type:      domain.EventCompleted,
		ThreadID:  thread.ID,
		Index:     thread.RunBase + x.next,
		Name:      e.name,
		Value:     out,
		Timestamp: thread.UpdatedAt,
	})
	return &domain.Result{
		ThreadID: thread.ID,
		Status:   domain.ResultCompleted,
		Value:    out,
	}, nil
}

func (e *Engine) onRunStart(ctx context.Context, ev *domain.RunEvent) {
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, ev)
	}
}

func (e *Engine) onRunFinish(ctx context.Context, ev *domain.RunEvent) {
	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, ev)
	}
}

func (e *Engine) onTaskStart(ctx context.Context, ev *domain.TaskEvent) {
	if e.hooks.OnTaskStart != nil {
		e.hooks.OnTaskStart(ctx, ev)
	}
}

func (e *Engine) onTaskReturn(ctx context.Context, ev *domain.TaskEvent) {
	if e.hooks.OnTaskReturn != nil {
		e.hooks.OnTaskReturn(ctx, ev)
	}
}

func (e *Engine) onCheckpoint(ctx context.Context, cp *domain.Checkpoint) {
	if e.hooks.OnCheckpoint != nil {
		e.hooks.OnCheckpoint(ctx, cp)
	}
}

func (e *Engine) onInterrupt(ctx context.Context, in *domain.Interrupt) {
	if e.hooks.OnInterrupt != nil {
		e.hooks.OnInterrupt(ctx, in)
	}
}
