package domain

// ResultStatus is the outcome of an Invoke or Resume call.
type ResultStatus string

const (
	ResultCompleted   ResultStatus = "completed"
	ResultInterrupted ResultStatus = "interrupted"
)

// Result is returned by Invoke and Resume.
type Result struct {
	ThreadID string       `json:"thread_id"`
	Status   ResultStatus `json:"status"`

	// Value is the workflow return value (Status == ResultCompleted).
	Value any `json:"value,omitempty"`

	// Payload is the interrupt payload shown to the human (Status == ResultInterrupted).
	Payload any `json:"payload,omitempty"`

	// InterruptID identifies the pending interrupt (Status == ResultInterrupted).
	InterruptID string `json:"interrupt_id,omitempty"`
}

// Interrupted reports whether the run stopped waiting for a reply.
func (r *Result) Interrupted() bool {
	return r != nil && r.Status == ResultInterrupted
}
