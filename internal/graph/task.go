package graph

import "io"

// State represents the current lifecycle stage of a task.
type State int

const (
	StatePending   State = iota // Waiting for dependencies
	StateArmed                  // Timer set, no unmet dependencies
	StateRunning                // External program executing
	StateDone                   // Finished, record about to be removed
	StateCancelled              // Cancelled, record about to be removed
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task represents a named unit of external work in the dependency graph.
// Name is the primary key of the store and immutable once created, as are
// ProgramPath, Parameters, ScheduledAt and Sink. DependsOn shrinks as
// dependencies complete or are cancelled; Dependents is the mirrored
// back-reference index and never an ownership edge.
type Task struct {
	Name        string
	ProgramPath string
	Parameters  []string
	ScheduledAt int64 // Epoch milliseconds; earliest time the task may run
	DependsOn   map[string]struct{}
	Dependents  map[string]struct{}
	Sink        io.WriteCloser // Combined-output destination, owned by the task
	State       State
}

// NewTask creates a task record with empty edge sets.
func NewTask(name, programPath string, scheduledAt int64, parameters []string) *Task {
	return &Task{
		Name:        name,
		ProgramPath: programPath,
		Parameters:  append([]string(nil), parameters...),
		ScheduledAt: scheduledAt,
		DependsOn:   make(map[string]struct{}),
		Dependents:  make(map[string]struct{}),
		State:       StatePending,
	}
}

// Clone returns a deep copy of the task's scalar fields and edge sets.
// The sink is shared, not copied.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	cp := *t
	cp.Parameters = append([]string(nil), t.Parameters...)
	cp.DependsOn = make(map[string]struct{}, len(t.DependsOn))
	for name := range t.DependsOn {
		cp.DependsOn[name] = struct{}{}
	}
	cp.Dependents = make(map[string]struct{}, len(t.Dependents))
	for name := range t.Dependents {
		cp.Dependents[name] = struct{}{}
	}
	return &cp
}
