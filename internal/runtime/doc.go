/*
Package runtime executes durable workflows.

A workflow is an ordinary Go function (an Entrypoint). It calls Context.Task to
dispatch work and Context.Interrupt to wait for a human. Every task result and
every consumed human reply is appended to the checkpoint log under a step
index. When the same thread is invoked again, steps that already have a
checkpoint are not executed: their recorded values are returned instead, so
the function re-runs from the top and reaches the point where it left off.

Workflows must be deterministic with respect to the sequence of steps they
issue; a replay that asks for a different step than the one recorded fails
with domain.ErrNonDeterministic.
*/
package runtime
