// Package tui holds the terminal presentation of the hitch command line.
package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; output that is not a terminal
// gets no styling.
func NewRenderer(out *os.File) func(string) (string, error) {
	style := glamour.WithStandardStyle("notty")
	if IsTerminal(out) {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return nil
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
