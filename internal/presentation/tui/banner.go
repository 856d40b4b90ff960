package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the robot banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	// Teal to blue gradient.
	lines := []struct{ text, color string }{
		{"           _           _   ", "#2dd4bf"},
		{"  _ __ ___ | |__   ___ | |_ ", "#22d3ee"},
		{" | '__/ _ \\| '_ \\ / _ \\| __|", "#38bdf8"},
		{" | | | (_) | |_) | (_) | |_ ", "#60a5fa"},
		{" |_|  \\___/|_.__/ \\___/ \\__|", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, out.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}

// Styler colors REPL output. Colors are dropped when the writer is not a terminal.
type Styler struct {
	out *termenv.Output
}

func NewStyler(w io.Writer) *Styler {
	return &Styler{out: termenv.NewOutput(w)}
}

// State highlights a state name.
func (s *Styler) State(name string) string {
	return s.out.String(name).Bold().Foreground(s.out.Color("#fbbf24")).String()
}

// Event highlights an event name.
func (s *Styler) Event(name string) string {
	return s.out.String(name).Foreground(s.out.Color("#38bdf8")).String()
}

// Faint dims secondary information.
func (s *Styler) Faint(text string) string {
	return s.out.String(text).Faint().String()
}

// Error highlights a failure.
func (s *Styler) Error(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#f87171")).String()
}
