/*
Package hitch is a durable workflow engine for human-in-the-loop agents.

A workflow is a plain Go function. It dispatches tasks, which run
concurrently and return futures, and it can pause with an interrupt to wait
for a human reply. Each task result and each reply is recorded as a
checkpoint in a store. When the thread is invoked again the function re-runs
from the top: recorded steps return their saved values instead of executing,
so the run picks up exactly where it stopped, even in another process.

# Key Features

  - Durable Execution: Checkpoints live in memory, files, SQLite or Redis.
  - Human-in-the-Loop: Interrupt/Resume with a payload and a reply.
  - Concurrent Tasks: Futures committed in step order.
  - Exactly-once Commits: A second writer of the same step gets domain.ErrCheckpointConflict.
  - Multi-run Threads: A completed run saves a value for the next one.

# Usage

	registry := task.NewRegistry()
	registry.MustRegister("write_essay", func(ctx context.Context, topic any) (any, error) {
		return fmt.Sprintf("An essay about topic: %v", topic), nil
	})

	eng, err := hitch.New(func(wf *hitch.Context, topic any) (any, error) {
		essay, err := hitch.Await[string](wf.Task("write_essay", topic))
		if err != nil {
			return nil, err
		}
		approved, err := wf.Interrupt(map[string]any{"essay": essay, "action": "Please approve/reject the essay"})
		if err != nil {
			return nil, err
		}
		return map[string]any{"essay": essay, "is_approved": approved}, nil
	}, registry)

	cfg := domain.ThreadConfig{ThreadID: "essay-1"}
	res, _ := eng.Invoke(ctx, cfg, "cat")          // res.Status == interrupted
	res, _ = eng.Resume(ctx, cfg, "approved")      // res.Status == completed

See pkg/demo for complete workflows, including a ReAct agent and a
multi-agent handoff, and cmd/hitch for the command line.
*/
package hitch
