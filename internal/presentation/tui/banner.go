package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  _     _ _       _     ", "#818cf8"},
	{" | |__ (_) |_ ___| |__  ", "#a78bfa"},
	{" | '_ \\| | __/ __| '_ \\ ", "#c084fc"},
	{" | | | | | || (__| | | |", "#e879f9"},
	{" |_| |_|_|\\__\\___|_| |_|", "#f472b6"},
}

// PrintBanner writes the hitch banner, coloured when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w)
}

// Status formats a one-line status message, green for success and red otherwise.
func Status(w io.Writer, ok bool, format string, args ...any) {
	out := termenv.NewOutput(w)
	color := "#22c55e"
	if !ok {
		color = "#ef4444"
	}
	fmt.Fprintln(w, out.String(">>> "+fmt.Sprintf(format, args...)).Foreground(out.Color(color)))
}
