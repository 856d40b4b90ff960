package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sytabaresa/robot/internal/presentation/graph"
	"github.com/sytabaresa/robot/internal/presentation/tui"
	"github.com/sytabaresa/robot/internal/validator"
	"github.com/sytabaresa/robot/pkg/domain"
)

// ErrInvalid is returned by Validate when a machine has error findings.
var ErrInvalid = errors.New("validation failed")

// Validate loads every machine of the document and prints the lint findings.
func Validate(opts Options, w io.Writer) error {
	doc, _, err := Load(opts)
	if err != nil {
		return err
	}

	names := doc.Order
	if opts.Machine != "" {
		names = []string{opts.Machine}
	}

	failed := false
	for _, name := range names {
		def, _ := doc.Machine(name)
		findings := validator.Lint(def)
		if len(findings) == 0 {
			fmt.Fprintf(w, "%s: ok (%d states)\n", name, len(def.States()))
			continue
		}
		fmt.Fprintf(w, "%s:\n", name)
		for _, f := range findings {
			fmt.Fprintf(w, "  %s\n", f)
			failed = failed || f.Severity == validator.SeverityError
		}
	}
	if failed {
		return ErrInvalid
	}
	return nil
}

// Graph prints the Mermaid diagram of the selected machine.
func Graph(opts Options, w io.Writer) error {
	_, def, err := Load(opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, graph.GenerateMermaid(def, nil))
	return err
}

// Describe prints a markdown summary of the selected machine, rendered for
// the terminal when render is set.
func Describe(opts Options, w io.Writer, render bool) error {
	_, def, err := Load(opts)
	if err != nil {
		return err
	}
	md := DescribeMarkdown(def)
	if render {
		if out, err := tui.NewRenderer()(md); err == nil {
			md = out
		}
	}
	_, err = io.WriteString(w, md)
	return err
}

// DescribeMarkdown summarizes states, transitions and invocations as markdown.
func DescribeMarkdown(def *domain.Definition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", def.Label())
	fmt.Fprintf(&sb, "Initial state: `%s`\n\n", def.Initial())

	sb.WriteString("| State | Kind | Transitions |\n|---|---|---|\n")
	for _, name := range def.States() {
		state, _ := def.State(name)
		kind := string(state.Kind())
		switch {
		case state.Final:
			kind = "final"
		case state.Invoke != nil:
			kind = "invoke " + invokeTarget(state.Invoke)
		}

		var edges []string
		for _, event := range state.Events() {
			for _, t := range state.Candidates(event) {
				edges = append(edges, edge(event, t))
			}
		}
		for _, t := range state.Immediates {
			edges = append(edges, edge("(always)", t))
		}
		if len(edges) == 0 {
			edges = []string{"-"}
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", name, kind, strings.Join(edges, "<br>"))
	}

	findings := validator.Lint(def)
	if len(findings) > 0 {
		sb.WriteString("\n## Findings\n\n")
		for _, f := range findings {
			fmt.Fprintf(&sb, "- **%s** `%s.%s`: %s\n", f.Severity, f.Machine, f.State, f.Message)
		}
	}
	return sb.String()
}

func edge(event string, t domain.Transition) string {
	s := fmt.Sprintf("%s → `%s`", event, t.To)
	if t.Guarded() {
		s += " (guarded)"
	}
	return s
}

func invokeTarget(inv *domain.Invoke) string {
	if inv.Kind == domain.InvokeMachine && inv.Machine != nil {
		return "`" + inv.Machine.Label() + "`"
	}
	return inv.Kind.String()
}
