package domain

import (
	"context"
	"time"
)

// EventType defines the category of a streamed event.
type EventType string

const (
	EventCheckpoint EventType = "checkpoint" // A step committed its checkpoint
	EventInterrupt  EventType = "interrupt"  // The run suspended
	EventCompleted  EventType = "completed"  // The run returned
)

// Event is a streaming update. Events of one invocation are delivered in
// step-index order.
type Event struct {
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEvent marks the start or end of one invocation of a thread.
type RunEvent struct {
	ThreadID string
	Run      int
	Resumed  bool
	// Status and Err are only set when the run finishes.
	Status   ThreadStatus
	Err      error
	Duration time.Duration
}

// TaskEvent represents a task dispatch or its return.
type TaskEvent struct {
	ThreadID string
	Task     string
	Index    int
	// Duration and Err are only set when the task returns.
	Duration time.Duration
	Err      error
}

// LifecycleHooks defines callbacks for engine observability.
// Task hooks may be called from task goroutines.
type LifecycleHooks struct {
	OnRunStart   func(context.Context, *RunEvent)
	OnRunFinish  func(context.Context, *RunEvent)
	OnTaskStart  func(context.Context, *TaskEvent)
	OnTaskReturn func(context.Context, *TaskEvent)
	OnCheckpoint func(context.Context, *Checkpoint)
	OnInterrupt  func(context.Context, *Interrupt)
}

// CombineHooks returns hooks that call each of the given hooks in order.
func CombineHooks(all ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range all {
		out.OnRunStart = chain(out.OnRunStart, h.OnRunStart)
		out.OnRunFinish = chain(out.OnRunFinish, h.OnRunFinish)
		out.OnTaskStart = chain(out.OnTaskStart, h.OnTaskStart)
		out.OnTaskReturn = chain(out.OnTaskReturn, h.OnTaskReturn)
		out.OnCheckpoint = chain(out.OnCheckpoint, h.OnCheckpoint)
		out.OnInterrupt = chain(out.OnInterrupt, h.OnInterrupt)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
