package events

import "time"

// Event is the base interface for all lifecycle events.
type Event interface {
	EventType() string
	TaskName() string
}

// Topic constants
const (
	TopicTask  = "task"
	TopicGraph = "graph"
)

// Event type constants
const (
	EventTypeTaskScheduled = "task.scheduled"
	EventTypeTaskArmed     = "task.armed"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskCancelled = "task.cancelled"
	EventTypeGraphProgress = "graph.progress"
)

// TaskScheduledEvent is published when a task is admitted into the graph.
type TaskScheduledEvent struct {
	Name        string
	ScheduledAt int64 // Epoch milliseconds
	DependsOn   []string
	Timestamp   time.Time
}

func (e TaskScheduledEvent) EventType() string { return EventTypeTaskScheduled }
func (e TaskScheduledEvent) TaskName() string  { return e.Name }

// TaskArmedEvent is published when a task's deferred-execution timer is set.
type TaskArmedEvent struct {
	Name      string
	Delay     time.Duration
	Timestamp time.Time
}

func (e TaskArmedEvent) EventType() string { return EventTypeTaskArmed }
func (e TaskArmedEvent) TaskName() string  { return e.Name }

// TaskStartedEvent is published when a task's external program is launched.
type TaskStartedEvent struct {
	Name        string
	ProgramPath string
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskName() string  { return e.Name }

// TaskCompletedEvent is published when a task's program has exited and the
// task has been removed from the graph.
type TaskCompletedEvent struct {
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskName() string  { return e.Name }

// TaskCancelledEvent is published when a task is cancelled. Freed lists
// dependents that became armed because the cancelled task was their last
// outstanding dependency.
type TaskCancelledEvent struct {
	Name      string
	Freed     []string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskName() string  { return e.Name }

// GraphProgressEvent carries aggregate live-task counts after a mutation.
type GraphProgressEvent struct {
	Total     int
	Pending   int
	Armed     int
	Running   int
	Timestamp time.Time
}

func (e GraphProgressEvent) EventType() string { return EventTypeGraphProgress }
func (e GraphProgressEvent) TaskName() string  { return "" }
