package scheduler

import "errors"

// Sentinel errors returned by Schedule and Cancel. Callers match with
// errors.Is; the wrapped message carries the offending task name.
var (
	// ErrInvalidTaskName is returned by Schedule when the task name is empty.
	ErrInvalidTaskName = errors.New("task name must not be empty")

	// ErrDuplicateTask is returned by Schedule when the name is already in use.
	ErrDuplicateTask = errors.New("duplicate task name")

	// ErrOrderingViolation is returned by Schedule when the task is scheduled
	// to run before one of its dependencies.
	ErrOrderingViolation = errors.New("task scheduled before its dependency")

	// ErrUnknownTask is returned by Cancel when no task with the given name
	// is present. A task that already ran and was removed is indistinguishable
	// from one that never existed.
	ErrUnknownTask = errors.New("unknown task")
)
