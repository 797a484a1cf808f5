package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownTask is returned when running a name that was never registered.
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask is returned when registering a name twice.
	ErrDuplicateTask = errors.New("task already registered")
)

// Func is the signature of a task.
type Func func(ctx context.Context, args any) (any, error)

// Option configures a registered task.
type Option func(*definition)

// WithTimeout bounds a single execution of the task.
func WithTimeout(d time.Duration) Option {
	return func(def *definition) {
		def.timeout = d
	}
}

// WithDescription attaches a human readable description, shown by the CLI.
func WithDescription(desc string) Option {
	return func(def *definition) {
		def.description = desc
	}
}

type definition struct {
	name        string
	fn          Func
	timeout     time.Duration
	description string
}

// Registry maps task names to functions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]definition)}
}

// Register adds a task under name.
func (r *Registry) Register(name string, fn Func, opts ...Option) error {
	if name == "" {
		return errors.New("task name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("task %q: nil function", name)
	}

	def := definition{name: name, fn: fn}
	for _, opt := range opts {
		opt(&def)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	r.tasks[name] = def
	return nil
}

// MustRegister is like Register but panics on error. Intended for package setup code.
func (r *Registry) MustRegister(name string, fn Func, opts ...Option) {
	if err := r.Register(name, fn, opts...); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[name]
	return ok
}

// Describe returns the description registered for name.
func (r *Registry) Describe(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[name].description
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tasks[name]
	return def, ok
}
