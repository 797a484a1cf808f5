package domain

import (
	"encoding/json"
	"time"
)

// ThreadStatus defines where a thread is in its lifecycle.
type ThreadStatus string

const (
	StatusFresh       ThreadStatus = "fresh"       // Never invoked
	StatusRunning     ThreadStatus = "running"     // A run started and has not finished (or aborted with an error)
	StatusInterrupted ThreadStatus = "interrupted" // Waiting for a human reply
	StatusCompleted   ThreadStatus = "completed"   // The last run returned
)

// Thread is the durable record of one execution identified by a caller-chosen ID.
//
// A thread may go through several runs. Each completed run leaves a saved value
// behind that the next run receives as its previous value; checkpoints are
// numbered with a global index so every run appends after the last one.
type Thread struct {
	ID     string       `json:"id"`
	Status ThreadStatus `json:"status"`

	// Run counts completed-or-started runs, starting at 0.
	Run int `json:"run"`

	// RunBase is the step index of the first step of the current run.
	RunBase int `json:"run_base"`

	// Input is the input of the current run, kept so an aborted run can be retried.
	Input json.RawMessage `json:"input,omitempty"`

	// Pending holds the interrupt the thread is waiting on (Status == StatusInterrupted).
	Pending *Interrupt `json:"pending,omitempty"`

	// Output is the value returned to the caller by the last completed run.
	Output json.RawMessage `json:"output,omitempty"`

	// Saved is the value handed to the next run as its previous value.
	Saved json.RawMessage `json:"saved,omitempty"`

	// LastError records why the last run aborted, if it did.
	LastError string `json:"last_error,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewThread creates a fresh thread record.
func NewThread(id string) *Thread {
	return &Thread{
		ID:     id,
		Status: StatusFresh,
	}
}

// Clone returns a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	c := *t
	c.Input = cloneRaw(t.Input)
	c.Output = cloneRaw(t.Output)
	c.Saved = cloneRaw(t.Saved)
	if t.Pending != nil {
		p := *t.Pending
		p.Payload = cloneRaw(t.Pending.Payload)
		c.Pending = &p
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ThreadConfig addresses a thread in Invoke, Resume and Stream.
type ThreadConfig struct {
	ThreadID string
	// Metadata is merged into the thread record when a run starts.
	Metadata map[string]string
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	c := make(json.RawMessage, len(r))
	copy(c, r)
	return c
}
