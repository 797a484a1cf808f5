package domain

import (
	"encoding/json"
	"time"
)

// CheckpointKind tells what kind of step produced a checkpoint.
type CheckpointKind string

const (
	KindTask   CheckpointKind = "task"   // The result of a task
	KindResume CheckpointKind = "resume" // The human reply consumed by an interrupt
)

// Checkpoint is the recorded outcome of one step.
// (ThreadID, Index) is unique; Index grows across runs of the same thread.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	Index     int             `json:"index"`
	Run       int             `json:"run"`
	Name      string          `json:"name"`
	Kind      CheckpointKind  `json:"kind"`
	Value     json.RawMessage `json:"value,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Clone returns a copy that does not share the value buffer.
func (c Checkpoint) Clone() Checkpoint {
	c.Value = cloneRaw(c.Value)
	return c
}

// NextIndex returns the index following the highest one in cps.
func NextIndex(cps []Checkpoint) int {
	next := 0
	for _, cp := range cps {
		if cp.Index >= next {
			next = cp.Index + 1
		}
	}
	return next
}
