package scheduler

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Order returns the names of all live tasks in dependency order: every task
// appears after all of its dependencies. Admission only links dependencies
// that already exist, so the graph is acyclic by construction; a cycle error
// here indicates store corruption.
func (e *Engine) Order() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var edges []toposort.Edge
	for _, task := range e.store.Tasks() {
		if len(task.DependsOn) == 0 {
			// Edge from nil keeps dependency-free tasks in the result.
			edges = append(edges, toposort.Edge{nil, task.Name})
			continue
		}
		for _, depName := range sortedNames(task.DependsOn) {
			edges = append(edges, toposort.Edge{depName, task.Name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if name != nil {
			order = append(order, name.(string))
		}
	}
	return order, nil
}

// sortedNames returns the members of a name set in lexicographic order.
func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
