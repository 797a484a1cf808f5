package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/hitch/pkg/domain"
)

// Context is handed to a workflow body. It issues steps and records them.
// Steps must be issued from the workflow goroutine, in a deterministic order.
type Context struct {
	ctx    context.Context
	exec   *execution
	prefix string
}

// Context returns the context of the current invocation.
func (wf *Context) Context() context.Context {
	return wf.ctx
}

// ThreadID returns the ID of the thread being run.
func (wf *Context) ThreadID() string {
	return wf.exec.thread.ID
}

// Run returns the run number (0 for the first run of the thread).
func (wf *Context) Run() int {
	return wf.exec.thread.Run
}

// Previous returns the value saved by the last completed run, or nil.
func (wf *Context) Previous() any {
	return wf.exec.previous
}

// DecodePrevious decodes the previous value into out. It reports false when
// there is no previous value.
func (wf *Context) DecodePrevious(out any) (bool, error) {
	if wf.exec.previous == nil {
		return false, nil
	}
	if err := domain.Decode(wf.exec.previous, out); err != nil {
		return false, fmt.Errorf("decode previous value: %w", err)
	}
	return true, nil
}

// Logger returns the engine logger annotated with the thread.
func (wf *Context) Logger() *slog.Logger {
	return wf.exec.engine.logger.With("thread_id", wf.ThreadID())
}

// Task dispatches the named task and returns its future immediately.
// If the step was already recorded, the task is not run and the future holds
// the recorded value.
func (wf *Context) Task(name string, args any) *Future {
	x := wf.exec
	x.mu.Lock()
	defer x.mu.Unlock()

	f := &Future{
		exec:  x,
		index: x.thread.RunBase + x.next,
		name:  wf.prefix + name,
		task:  name,
	}
	x.next++

	if err := x.blocked(); err != nil {
		f.fail(err)
		return f
	}

	if cp, ok := x.replay[f.index]; ok {
		if cp.Kind != domain.KindTask || cp.Name != f.name {
			err := &domain.NonDeterministicError{Index: f.index, Expected: cp.Name, Got: f.name}
			x.failed = err
			f.fail(err)
			return f
		}
		x.engine.logger.Debug("skipping checkpointed step",
			"thread_id", x.thread.ID,
			"step", f.name,
			"index", f.index,
		)
		f.replayed = true
		f.settleFrom(cp.Value)
		return f
	}

	x.engine.onTaskStart(x.ctx, &domain.TaskEvent{ThreadID: x.thread.ID, Task: name, Index: f.index})
	f.inner = x.engine.runner.Run(x.ctx, name, args)
	x.pending = append(x.pending, f)
	return f
}

// Interrupt suspends the run and shows payload to a human.
//
// On the first pass it returns ErrInterrupted, which the workflow must
// propagate. When the thread is resumed, the same call returns the human's
// reply. Outstanding futures are committed before suspending.
func (wf *Context) Interrupt(payload any) (any, error) {
	x := wf.exec
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.settleAll(); err != nil {
		return nil, err
	}
	if err := x.blocked(); err != nil {
		return nil, err
	}

	index := x.thread.RunBase + x.next
	name := wf.prefix + "interrupt"
	x.next++

	if cp, ok := x.replay[index]; ok {
		if cp.Kind != domain.KindResume || cp.Name != name {
			err := &domain.NonDeterministicError{Index: index, Expected: cp.Name, Got: name}
			x.failed = err
			return nil, err
		}
		return domain.Unmarshal(cp.Value)
	}

	if r := x.resume; r != nil && !r.used {
		if r.pending.Index != index || r.pending.Name != name {
			err := &domain.NonDeterministicError{Index: index, Expected: r.pending.Name, Got: name}
			x.failed = err
			return nil, err
		}
		value, raw, err := domain.Normalize(r.value)
		if err != nil {
			return nil, fmt.Errorf("resume value: %w", err)
		}
		if err := x.commit(domain.Checkpoint{
			ThreadID: x.thread.ID,
			Index:    index,
			Run:      x.thread.Run,
			Name:     name,
			Kind:     domain.KindResume,
			Value:    raw,
		}); err != nil {
			return nil, err
		}
		r.used = true
		x.thread.Pending = nil
		return value, nil
	}

	_, raw, err := domain.Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("interrupt payload: %w", err)
	}
	x.interrupt = &domain.Interrupt{
		ID:      domain.InterruptID(x.thread.ID, x.thread.Run, index),
		Run:     x.thread.Run,
		Index:   index,
		Name:    name,
		Payload: raw,
	}
	return nil, ErrInterrupted
}

// InterruptAs is Interrupt with the reply decoded into T.
func InterruptAs[T any](wf *Context, payload any) (T, error) {
	var out T
	reply, err := wf.Interrupt(payload)
	if err != nil {
		return out, err
	}
	if err := domain.Decode(reply, &out); err != nil {
		return out, fmt.Errorf("decode resume value: %w", err)
	}
	return out, nil
}

// Call runs fn as a sub-workflow. Its steps are recorded in the same log,
// with names prefixed by "name/".
func (wf *Context) Call(name string, fn Entrypoint, input any) (any, error) {
	child := &Context{
		ctx:    wf.ctx,
		exec:   wf.exec,
		prefix: wf.prefix + name + "/",
	}
	return fn(child, input)
}

type resumeState struct {
	value   any
	pending *domain.Interrupt
	used    bool
}

// execution is the state shared by a workflow and its sub-workflows during
// one invocation.
type execution struct {
	mu sync.Mutex

	engine   *Engine
	ctx      context.Context
	thread   *domain.Thread
	replay   map[int]domain.Checkpoint
	next     int // position of the next step within the run
	pending  []*Future
	resume   *resumeState
	previous any
	emit     EmitFunc

	interrupt *domain.Interrupt
	failed    error
}

func (x *execution) blocked() error {
	if x.failed != nil {
		return x.failed
	}
	if x.interrupt != nil {
		return ErrInterrupted
	}
	return nil
}

// settleThrough commits, in step order, every outstanding future up to and including f.
func (x *execution) settleThrough(f *Future) {
	for !f.done && len(x.pending) > 0 && x.pending[0].index <= f.index {
		p := x.pending[0]
		x.pending = x.pending[1:]
		x.settle(p)
	}
}

// settleAll commits every outstanding future and returns the first failure.
func (x *execution) settleAll() error {
	var first error
	for len(x.pending) > 0 {
		p := x.pending[0]
		x.pending = x.pending[1:]
		x.settle(p)
		if p.err != nil && first == nil {
			first = p.err
		}
	}
	return first
}

func (x *execution) settle(f *Future) {
	v, err := f.inner.Result()
	x.engine.onTaskReturn(x.ctx, &domain.TaskEvent{
		ThreadID: x.thread.ID,
		Task:     f.task,
		Index:    f.index,
		Duration: f.inner.Elapsed(),
		Err:      err,
	})
	if err != nil {
		f.fail(err)
		return
	}
	if x.failed != nil {
		f.fail(x.failed)
		return
	}

	_, raw, err := domain.Normalize(v)
	if err != nil {
		f.fail(fmt.Errorf("task %s: result: %w", f.task, err))
		return
	}
	if err := x.commit(domain.Checkpoint{
		ThreadID: x.thread.ID,
		Index:    f.index,
		Run:      x.thread.Run,
		Name:     f.name,
		Kind:     domain.KindTask,
		Value:    raw,
	}); err != nil {
		f.fail(err)
		return
	}
	f.settleFrom(raw)
}

// commit appends cp to the log and publishes it. A failed commit halts the run.
func (x *execution) commit(cp domain.Checkpoint) error {
	if err := x.ctx.Err(); err != nil {
		x.failed = err
		return err
	}

	cp.Timestamp = x.engine.now()
	if err := x.engine.store.Append(x.ctx, x.thread.ID, cp); err != nil {
		x.failed = fmt.Errorf("commit step %d (%s): %w", cp.Index, cp.Name, err)
		return x.failed
	}

	x.engine.onCheckpoint(x.ctx, &cp)
	value, _ := domain.Unmarshal(cp.Value)
	x.emit(domain.Event{
		Type:      domain.EventCheckpoint,
		ThreadID:  cp.ThreadID,
		Index:     cp.Index,
		Name:      cp.Name,
		Value:     value,
		Timestamp: cp.Timestamp,
	})
	return nil
}

// finish commits what is still outstanding once the workflow body returned.
func (x *execution) finish() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.settleAll(); err != nil {
		return err
	}
	if x.failed != nil {
		return x.failed
	}
	if r := x.resume; r != nil && !r.used && x.interrupt == nil {
		return &domain.NonDeterministicError{Index: r.pending.Index, Expected: r.pending.Name, Got: "return"}
	}
	return nil
}
