package handler

import (
	"fmt"
	"sort"
	"strings"
)

// continuations returns the non-nil continuation references of t.
func (t *Template) continuations() []*Template {
	var out []*Template
	for _, c := range []*Template{t.Ack, t.OnSuccess, t.OnFailure, t.Planner} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// reachable returns every template reachable from roots, roots included.
func reachable(roots []*Template) []*Template {
	seen := make(map[*Template]bool)
	var out []*Template
	stack := append([]*Template(nil), roots...)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		stack = append(stack, t.continuations()...)
	}
	return out
}

// detectCycle checks the continuation graph reachable from roots using Kahn's
// algorithm (topological sort). It returns the names of the templates left
// with incoming edges, sorted, or nil if the graph is acyclic. A template that
// references itself is a cycle.
func detectCycle(roots []*Template) []string {
	nodes := reachable(roots)

	inDegree := make(map[*Template]int, len(nodes))
	for _, t := range nodes {
		inDegree[t] += 0
		for _, c := range t.continuations() {
			inDegree[c]++
		}
	}

	queue := []*Template{}
	for _, t := range nodes {
		if inDegree[t] == 0 {
			queue = append(queue, t)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++

		for _, c := range current.continuations() {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if processed == len(nodes) {
		return nil
	}

	var involved []string
	for t, degree := range inDegree {
		if degree > 0 {
			involved = append(involved, t.Name)
		}
	}
	sort.Strings(involved)
	return involved
}

// validateGraph checks every reachable template is complete and the graph is acyclic.
func validateGraph(roots []*Template) error {
	for _, t := range reachable(roots) {
		if t.Name == "" {
			return fmt.Errorf("%w: template has no name", ErrInvalidTemplate)
		}
		if t.Logic == nil {
			return fmt.Errorf("%w: template %q has no logic", ErrInvalidTemplate, t.Name)
		}
	}

	if involved := detectCycle(roots); involved != nil {
		return fmt.Errorf("%w involving templates: %s", ErrCycle, strings.Join(involved, ", "))
	}
	return nil
}
