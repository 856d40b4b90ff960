package graph

import (
	"fmt"
	"strings"

	"github.com/sytabaresa/robot/pkg/domain"
)

// GraphOverlay contains live service data to visualize on the graph.
// Entries are state paths: a root state is "name", a state of the machine
// invoked by "name" is "name/child".
type GraphOverlay struct {
	VisitedStates []string
	CurrentPath   []string
}

// GenerateMermaid produces a Mermaid flowchart for a Definition.
// It applies semantic styling:
// - Initial: ((Circle))
// - Invoke: [[Subroutine]]
// - Final: (((Double Circle)))
// - Default: [Rectangle]
// Machines invoked directly are drawn as nested subgraphs. Immediate
// transitions are dotted edges.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if def != nil {
		writeMachine(&sb, def, "", "    ", map[*domain.Definition]bool{})
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, p := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(p)
			if !visited[safeID] && safeID != "" {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		// Each level of the service tree gets its own highlight.
		prefix := ""
		for _, name := range overlay.CurrentPath {
			prefix += name
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(prefix))
			prefix += "/"
		}
	}

	return sb.String()
}

func writeMachine(sb *strings.Builder, def *domain.Definition, prefix, indent string, seen map[*domain.Definition]bool) {
	seen[def] = true
	defer delete(seen, def)

	for _, name := range def.States() {
		state, _ := def.State(name)
		safeID := sanitizeMermaidID(prefix + name)

		opener, closer := "[", "]"
		label := name
		switch {
		case name == def.Initial():
			opener, closer = "((", "))"
		case state.Final:
			opener, closer = "(((", ")))"
		case state.Kind() == domain.KindInvoke:
			opener, closer = "[[", "]]"
		}
		if state.Invoke != nil {
			label = fmt.Sprintf("%s <br/> ⚙ %s", name, invokeLabel(state.Invoke))
		}
		fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, safeID, opener, escapeLabel(label), closer)

		for _, event := range state.Events() {
			for _, t := range state.Candidates(event) {
				text := event
				if t.Guarded() {
					text += " [guarded]"
				}
				fmt.Fprintf(sb, "%s%s -- \"%s\" --> %s\n", indent, safeID, escapeLabel(text), sanitizeMermaidID(prefix+t.To))
			}
		}
		for _, t := range state.Immediates {
			arrow := "-.->"
			if t.Guarded() {
				arrow = "-. \"[guarded]\" .->"
			}
			fmt.Fprintf(sb, "%s%s %s %s\n", indent, safeID, arrow, sanitizeMermaidID(prefix+t.To))
		}

		if state.Invoke == nil || state.Invoke.Kind != domain.InvokeMachine || seen[state.Invoke.Machine] {
			continue
		}
		child := state.Invoke.Machine
		childPrefix := prefix + name + "/"
		fmt.Fprintf(sb, "%ssubgraph %s_machine [\"%s\"]\n", indent, safeID, escapeLabel(child.Label()))
		writeMachine(sb, child, childPrefix, indent+"    ", seen)
		fmt.Fprintf(sb, "%send\n", indent)
		fmt.Fprintf(sb, "%s%s -.-o %s\n", indent, safeID, sanitizeMermaidID(childPrefix+child.Initial()))
	}
}

func invokeLabel(inv *domain.Invoke) string {
	if inv.Kind == domain.InvokeMachine && inv.Machine != nil {
		return inv.Machine.Label()
	}
	return inv.Kind.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
