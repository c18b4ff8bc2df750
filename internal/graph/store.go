package graph

import "fmt"

// Store is the authoritative mapping from task name to task record.
// Edges are stored redundantly in both directions on the records themselves,
// so every mutation is O(1) direct key work with no traversal.
//
// The store is NOT internally synchronized. All access happens inside the
// scheduling engine's critical section; exposing mutation primitives without
// a lock here keeps the locking discipline in exactly one place.
type Store struct {
	tasks map[string]*Task
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Insert adds a task record. Returns an error if the name already exists.
func (s *Store) Insert(task *Task) error {
	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already exists", task.Name)
	}
	s.tasks[task.Name] = task
	return nil
}

// Get returns the live task record for name.
func (s *Store) Get(name string) (*Task, bool) {
	task, exists := s.tasks[name]
	return task, exists
}

// Remove deletes the record for name and returns it.
// Returns an error if the name is absent.
func (s *Store) Remove(name string) (*Task, error) {
	task, exists := s.tasks[name]
	if !exists {
		return nil, fmt.Errorf("task %q not found", name)
	}
	delete(s.tasks, name)
	return task, nil
}

// Link records that dependent waits on dependency, maintaining the mirror
// invariant: dependency.Dependents gains the dependent's name and
// dependent.DependsOn gains the dependency's name in the same step.
func (s *Store) Link(dependency, dependent *Task) {
	dependency.Dependents[dependent.Name] = struct{}{}
	dependent.DependsOn[dependency.Name] = struct{}{}
}

// Unlink removes the edge between dependency and dependent in both
// directions. Missing edges are a no-op.
func (s *Store) Unlink(dependency, dependent *Task) {
	delete(dependency.Dependents, dependent.Name)
	delete(dependent.DependsOn, dependency.Name)
}

// Len returns the number of live tasks.
func (s *Store) Len() int {
	return len(s.tasks)
}

// Tasks returns all live task records. The returned slice is fresh but the
// records are the live ones; callers inside the engine's critical section
// may read them, everyone else gets clones from the engine instead.
func (s *Store) Tasks() []*Task {
	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// Names returns the names of all live tasks.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}
