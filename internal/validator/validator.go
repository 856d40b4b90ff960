package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sytabaresa/robot/pkg/domain"
)

// Severity ranks a lint finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one problem found in a definition.
type Finding struct {
	Severity Severity
	// Machine is the label of the machine, path-qualified for nested machines ("checkout/payment").
	Machine string
	State   string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s.%s: %s", f.Severity, f.Machine, f.State, f.Message)
}

// Lint inspects def and every machine it invokes directly.
// Resolver invokes are opaque and not followed.
func Lint(def *domain.Definition) []Finding {
	var findings []Finding
	lint(def, def.Label(), map[*domain.Definition]bool{}, &findings)
	return findings
}

func lint(def *domain.Definition, machine string, seen map[*domain.Definition]bool, out *[]Finding) {
	if seen[def] {
		return
	}
	seen[def] = true

	add := func(sev Severity, state, format string, args ...any) {
		*out = append(*out, Finding{Severity: sev, Machine: machine, State: state, Message: fmt.Sprintf(format, args...)})
	}

	reachable := reachableFrom(def)
	for _, name := range def.States() {
		state, _ := def.State(name)

		if !reachable[name] {
			add(SeverityWarning, name, "unreachable from initial state %q", def.Initial())
		}
		if !state.Final && state.Invoke == nil && len(state.Transitions) == 0 && len(state.Immediates) == 0 {
			add(SeverityWarning, name, "dead end: no transitions and not final")
		}
		if state.Invoke != nil && len(state.Candidates(domain.EventDone)) == 0 {
			add(SeverityWarning, name, "invoke state has no %q transition", domain.EventDone)
		}
	}
	for _, name := range def.MissingErrorPaths() {
		add(SeverityWarning, name, "invoke state has no %q transition; failures will be dropped", domain.EventError)
	}
	for _, cycle := range immediateCycles(def) {
		add(SeverityError, cycle[0], "unguarded immediate cycle: %s", strings.Join(cycle, " -> "))
	}

	for _, name := range def.States() {
		state, _ := def.State(name)
		if state.Invoke != nil && state.Invoke.Kind == domain.InvokeMachine {
			lint(state.Invoke.Machine, machine+"/"+state.Invoke.Machine.Label(), seen, out)
		}
	}
}

func reachableFrom(def *domain.Definition) map[string]bool {
	visited := map[string]bool{}
	queue := []string{def.Initial()}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		state, ok := def.State(current)
		if !ok {
			continue
		}
		for _, target := range state.Targets() {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	return visited
}

// immediateCycles returns the cycles formed by unguarded immediate transitions.
// Such a cycle never settles once entered. Each cycle is reported once.
func immediateCycles(def *domain.Definition) [][]string {
	next := map[string]string{}
	for _, name := range def.States() {
		state, _ := def.State(name)
		// First-match-wins: only a leading unguarded immediate is always taken.
		if len(state.Immediates) > 0 && !state.Immediates[0].Guarded() {
			next[name] = state.Immediates[0].To
		}
	}

	var cycles [][]string
	reported := map[string]bool{}
	for _, name := range def.States() {
		var path []string
		onPath := map[string]int{}
		for current, ok := name, true; ok; current, ok = next[current] {
			if reported[current] {
				break
			}
			if i, seen := onPath[current]; seen {
				cycle := slices.Clone(path[i:])
				for _, s := range cycle {
					reported[s] = true
				}
				cycles = append(cycles, append(cycle, current))
				break
			}
			onPath[current] = len(path)
			path = append(path, current)
		}
	}
	return cycles
}

// ValidateGraph returns an error listing every error-severity finding.
func ValidateGraph(def *domain.Definition) error {
	var errs []string
	for _, f := range Lint(def) {
		if f.Severity == SeverityError {
			errs = append(errs, f.String())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}

// Hook adapts ValidateGraph to the build-time validation hook.
func Hook(_ string, def *domain.Definition) error {
	return ValidateGraph(def)
}
