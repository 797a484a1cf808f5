/*
Package domain contains the core domain model of the Hitch workflow engine.

It defines the durable entities that outlive a single process: threads,
checkpoints and pending interrupts, plus the values the engine hands back to
callers (results, events and resume commands). The package is kept free of
I/O so that every storage adapter and the runtime can share it.

# Key Entities

  - Thread: The durable record of one conversation/execution (status, run, pending interrupt).
  - Checkpoint: The recorded result of a step, keyed by (thread, step index).
  - Interrupt: A suspension point waiting for a human reply.
  - Result: What Invoke and Resume return (completed value or interrupt payload).
  - Event: A streaming update emitted after each checkpoint, interrupt or completion.
  - Command: A resume instruction carrying the human reply.
*/
package domain
