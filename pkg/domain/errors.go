package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrThreadNotFound is returned when a thread ID cannot be found in the store.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrMissingThreadID is returned when an operation is called without a thread ID.
	ErrMissingThreadID = errors.New("thread id is required")

	// ErrCheckpointConflict is returned when a checkpoint already exists for a (thread, index) pair.
	ErrCheckpointConflict = errors.New("checkpoint conflict")

	// ErrNoPendingInterrupt is returned when Resume is called on a thread that is not interrupted.
	ErrNoPendingInterrupt = errors.New("no pending interrupt")

	// ErrPendingInterrupt is returned when a thread waiting for a reply receives plain input.
	ErrPendingInterrupt = errors.New("thread has a pending interrupt")

	// ErrNonDeterministic is returned when a replayed step does not match the recorded checkpoint.
	ErrNonDeterministic = errors.New("non-deterministic workflow")

	// ErrStreamReentry is returned when a thread is run or deleted from inside
	// the loop body of a Stream over the same thread.
	ErrStreamReentry = errors.New("thread is held by an active stream")

	// ErrUnknownTransferTarget is returned when a handoff names an agent that is not registered.
	ErrUnknownTransferTarget = errors.New("unknown transfer target")
)

// UnknownTransferTargetError carries the name of the agent a handoff tried to reach.
// It matches ErrUnknownTransferTarget with errors.Is.
type UnknownTransferTargetError struct {
	Name string
}

func (e *UnknownTransferTargetError) Error() string {
	return fmt.Sprintf("unknown transfer target %q", e.Name)
}

func (e *UnknownTransferTargetError) Is(target error) bool {
	return target == ErrUnknownTransferTarget
}

// NonDeterministicError describes where a replay diverged from the recorded history.
type NonDeterministicError struct {
	Index    int
	Expected string
	Got      string
}

func (e *NonDeterministicError) Error() string {
	return fmt.Sprintf("step %d: recorded %q, workflow asked for %q", e.Index, e.Expected, e.Got)
}

func (e *NonDeterministicError) Is(target error) bool {
	return target == ErrNonDeterministic
}
