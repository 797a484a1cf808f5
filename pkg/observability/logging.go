package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/hitch/pkg/domain"
)

// LogHooks traces engine activity at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.Debug("Run Start", "thread_id", e.ThreadID, "run", e.Run, "resumed", e.Resumed)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.Debug("Run Finish (Error)", "thread_id", e.ThreadID, "run", e.Run, "err", e.Err)
				return
			}
			logger.Debug("Run Finish", "thread_id", e.ThreadID, "run", e.Run, "status", e.Status, "duration", e.Duration)
		},
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) {
			logger.Debug("Task Start", "thread_id", e.ThreadID, "task", e.Task, "index", e.Index)
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			if e.Err != nil {
				logger.Debug("Task Return (Error)", "task", e.Task, "index", e.Index, "err", e.Err)
				return
			}
			logger.Debug("Task Return (Success)", "task", e.Task, "index", e.Index, "duration", e.Duration)
		},
		OnCheckpoint: func(ctx context.Context, cp *domain.Checkpoint) {
			logger.Debug("Checkpoint", "thread_id", cp.ThreadID, "index", cp.Index, "name", cp.Name, "kind", cp.Kind)
		},
		OnInterrupt: func(ctx context.Context, i *domain.Interrupt) {
			logger.Debug("Interrupt", "interrupt_id", i.ID, "index", i.Index, "name", i.Name)
		},
	}
}
