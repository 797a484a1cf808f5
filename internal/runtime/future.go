package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/task"
)

// Future is the pending result of a step.
type Future struct {
	exec  *execution
	index int
	name  string // step name, including the sub-workflow prefix
	task  string // registry name
	inner *task.Future

	done     bool
	replayed bool
	value    any
	raw      json.RawMessage
	err      error
}

// Result waits for the step and commits its checkpoint (and those of earlier
// outstanding steps, in order). Values are returned in their JSON form: maps,
// slices, float64 and strings. Use Decode or Await for typed results.
func (f *Future) Result() (any, error) {
	f.exec.mu.Lock()
	defer f.exec.mu.Unlock()
	f.exec.settleThrough(f)
	return f.value, f.err
}

// Decode waits for the step and unmarshals its value into out.
func (f *Future) Decode(out any) error {
	if _, err := f.Result(); err != nil {
		return err
	}
	if len(f.raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", f.name, err)
	}
	return nil
}

// Index returns the step index.
func (f *Future) Index() int {
	return f.index
}

// Name returns the step name.
func (f *Future) Name() string {
	return f.name
}

// Replayed reports whether the value came from a checkpoint instead of a live run.
func (f *Future) Replayed() bool {
	return f.replayed
}

func (f *Future) fail(err error) {
	f.done = true
	f.err = err
}

func (f *Future) settleFrom(raw json.RawMessage) {
	f.done = true
	f.raw = raw
	value, err := domain.Unmarshal(raw)
	if err != nil {
		f.err = fmt.Errorf("decode %s: %w", f.name, err)
		return
	}
	f.value = value
}

// Await waits for f and decodes its value into T.
func Await[T any](f *Future) (T, error) {
	var out T
	err := f.Decode(&out)
	return out, err
}
