/*
Package task holds the registry of named units of work and the runner that
executes them concurrently.

A task is a plain Go function. Running it returns a Future immediately; the
function executes on its own goroutine, so a workflow can start several tasks
and then wait for them in whatever order it needs. Panics and timeouts are
converted into *Error values so one misbehaving task never takes the process
down.
*/
package task
