package runner

import (
	"context"

	"github.com/aretw0/hitch/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents an event of the running thread.
	Output(ctx context.Context, ev domain.Event) error

	// Input reads the reply to an interrupt. It returns io.EOF when the
	// input is exhausted.
	Input(ctx context.Context) (any, error)

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
