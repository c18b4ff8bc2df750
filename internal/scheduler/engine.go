package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/taskmill/taskmill/internal/events"
	"github.com/taskmill/taskmill/internal/graph"
)

// SinkProvider allocates a combined-output destination for a task before it
// can be armed. Provisioning is an external collaborator concern; the engine
// only needs a write destination, not a naming scheme.
type SinkProvider interface {
	Provision(taskName string) (io.WriteCloser, error)
}

// Executor runs a task's external program with its parameters, streaming the
// combined output into the task's sink, and returns when the program exits.
// The engine never interprets the program's own exit status.
type Executor interface {
	Run(ctx context.Context, task *graph.Task) error
}

// Journal records task lifecycle outcomes best-effort. Implementations must
// not block: the engine may call Record while holding its store lock.
type Journal interface {
	Record(task *graph.Task, outcome string)
}

// Journal outcome values.
const (
	OutcomeScheduled = "scheduled"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// ScheduleRequest describes a task to admit.
// ScheduledAt is epoch milliseconds; zero means "now". Dependencies naming
// tasks not present in the store are silently dropped: once a task has
// finished and been removed, it is indistinguishable from one that never
// existed.
type ScheduleRequest struct {
	Name        string
	ProgramPath string
	ScheduledAt int64
	DependsOn   []string
	Parameters  []string
}

// Config configures an Engine.
type Config struct {
	Sinks    SinkProvider // Required
	Executor Executor     // Required
	Bus      *events.Bus  // Optional lifecycle event bus
	Journal  Journal      // Optional run journal
	Now      func() int64 // Optional clock returning epoch ms (for tests)
}

// Engine validates and admits tasks, arms per-task deferred-execution timers,
// and propagates cancellation and completion through the dependency graph.
//
// One coarse mutex guards the whole store: edges span arbitrary task pairs,
// so per-task locking risks deadlock on cyclic dependent/depends-on pairs.
// External programs always run outside the lock; only graph-shape mutations
// happen inside it, which keeps hold times bounded and fast. All state is
// in-memory and lost on process termination.
type Engine struct {
	mu     sync.Mutex
	store  *graph.Store
	timers map[string]*time.Timer

	sinks   SinkProvider
	exec    Executor
	bus     *events.Bus
	journal Journal
	now     func() int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:   graph.NewStore(),
		timers:  make(map[string]*time.Timer),
		sinks:   cfg.Sinks,
		exec:    cfg.Executor,
		bus:     cfg.Bus,
		journal: cfg.Journal,
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule admits a task. The task will not run before req.ScheduledAt and
// not before all of its surviving dependencies have run.
//
// Validation is all-or-nothing: name uniqueness first, then the ordering
// check against every surviving dependency. A failed call leaves the graph
// unchanged. On success the returned value is the advisory wait in
// milliseconds until intended dispatch (zero if the time is already past);
// internal precision is governed solely by the timer deadline.
func (e *Engine) Schedule(req ScheduleRequest) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Name == "" {
		return 0, ErrInvalidTaskName
	}
	if _, exists := e.store.Get(req.Name); exists {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateTask, req.Name)
	}

	now := e.now()
	at := req.ScheduledAt
	if at == 0 {
		at = now
	}

	// Prune dependencies that are not in the store (already finished, or
	// never existed -- the caller cannot tell the difference).
	deps := make([]*graph.Task, 0, len(req.DependsOn))
	seen := make(map[string]struct{}, len(req.DependsOn))
	for _, depName := range req.DependsOn {
		if _, dup := seen[depName]; dup {
			continue
		}
		seen[depName] = struct{}{}

		dep, ok := e.store.Get(depName)
		if !ok {
			continue
		}
		deps = append(deps, dep)
	}

	// Hard admission-time constraint: a task may not be scheduled earlier
	// than any of its direct dependencies. Checked before any mutation.
	for _, dep := range deps {
		if dep.ScheduledAt > at {
			return 0, fmt.Errorf("%w: %q at %d precedes dependency %q at %d",
				ErrOrderingViolation, req.Name, at, dep.Name, dep.ScheduledAt)
		}
	}

	sink, err := e.sinks.Provision(req.Name)
	if err != nil {
		return 0, fmt.Errorf("provisioning output sink for %q: %w", req.Name, err)
	}

	task := graph.NewTask(req.Name, req.ProgramPath, at, req.Parameters)
	task.Sink = sink

	// Insert cannot fail: uniqueness was checked above under the same lock.
	if err := e.store.Insert(task); err != nil {
		sink.Close()
		return 0, err
	}
	for _, dep := range deps {
		e.store.Link(dep, task)
	}

	e.publish(events.TaskScheduledEvent{
		Name:        task.Name,
		ScheduledAt: task.ScheduledAt,
		DependsOn:   sortedNames(task.DependsOn),
		Timestamp:   time.Now(),
	})
	e.record(task, OutcomeScheduled)

	if len(task.DependsOn) == 0 {
		e.armLocked(task, now)
	}
	e.publishProgressLocked()

	wait := at - now
	if wait < 0 {
		wait = 0
	}
	return wait, nil
}

// Cancel removes a scheduled task and unlinks it from the graph. Dependents
// waiting only on the cancelled task are armed. Returns the removed record.
//
// Cancelling a task whose program is already running unlinks it the same way
// but does not kill the program; it runs to completion unsupervised.
func (e *Engine) Cancel(name string) (*graph.Task, error) {
	e.mu.Lock()

	task, ok := e.store.Get(name)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}

	// Disarm before any other mutation so the timer cannot fire into a
	// half-unlinked graph. Stop reporting false means the timer already
	// fired and dispatch is waiting on the lock; removing the record below
	// makes that dispatch a no-op.
	if timer, armed := e.timers[name]; armed {
		timer.Stop()
		delete(e.timers, name)
	}

	running := task.State == graph.StateRunning
	if running {
		log.Printf("task %q cancelled while running; program is not killed", name)
	}

	task.State = graph.StateCancelled
	freed := e.unlinkLocked(task)
	e.store.Remove(name)

	if !running && task.Sink != nil {
		// The program never ran; nothing else will close the sink.
		task.Sink.Close()
	}

	removed := task.Clone()
	e.publish(events.TaskCancelledEvent{
		Name:      name,
		Freed:     taskNames(freed),
		Timestamp: time.Now(),
	})
	e.record(task, OutcomeCancelled)
	e.publishProgressLocked()
	e.mu.Unlock()

	return removed, nil
}

// Len returns the number of live tasks.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}

// Get returns a snapshot of the named task.
func (e *Engine) Get(name string) (*graph.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.store.Get(name)
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// Tasks returns snapshots of all live tasks.
func (e *Engine) Tasks() []*graph.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks := e.store.Tasks()
	out := make([]*graph.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Clone())
	}
	return out
}

// Stop disarms all pending timers and cancels the context passed to running
// executors. Intended for daemon shutdown; the graph is left as-is since all
// state is lost with the process anyway.
func (e *Engine) Stop() {
	e.mu.Lock()
	for name, timer := range e.timers {
		timer.Stop()
		delete(e.timers, name)
	}
	e.mu.Unlock()

	e.cancel()
}

// armLocked transitions a dependency-free task to Armed and sets its
// deferred-execution timer. Caller must hold e.mu.
func (e *Engine) armLocked(task *graph.Task, now int64) {
	task.State = graph.StateArmed

	delay := time.Duration(task.ScheduledAt-now) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	e.timers[task.Name] = time.AfterFunc(delay, func() { e.dispatch(task) })

	e.publish(events.TaskArmedEvent{
		Name:      task.Name,
		Delay:     delay,
		Timestamp: time.Now(),
	})
}

// dispatch fires when a task's timer expires: it marks the task Running under
// the lock, then invokes the executor outside the lock, blocks until the
// program exits, and performs the completion transition.
//
// The live record is carried by pointer, not looked up by name: a name is
// reusable as soon as its task is removed, so between the timer firing and
// this goroutine acquiring the lock the name may already belong to an
// unrelated task that must not be touched.
func (e *Engine) dispatch(task *graph.Task) {
	e.mu.Lock()
	got, ok := e.store.Get(task.Name)
	if !ok || got != task || task.State != graph.StateArmed {
		// Cancelled between the timer firing and this goroutine acquiring
		// the lock; the cancellation already unlinked the task and removed
		// its timer entry. Any timer entry under this name belongs to a
		// newer task.
		e.mu.Unlock()
		return
	}
	task.State = graph.StateRunning
	delete(e.timers, task.Name)
	run := task.Clone()
	e.publishProgressLocked()
	e.mu.Unlock()

	e.publish(events.TaskStartedEvent{
		Name:        task.Name,
		ProgramPath: run.ProgramPath,
		Timestamp:   time.Now(),
	})

	started := time.Now()
	if err := e.exec.Run(e.ctx, run); err != nil {
		// Execution failures of the user's program are not orchestration
		// failures; surfaced only through the log and the captured output.
		log.Printf("task %q: program exited with error: %v", task.Name, err)
	}
	if run.Sink != nil {
		run.Sink.Close()
	}

	e.complete(task, time.Since(started))
}

// complete removes a finished task from the graph, arming any dependents it
// was the last outstanding dependency for. Shares the unlink algorithm with
// Cancel; the timer that triggered execution has already fired, so there is
// nothing to disarm.
func (e *Engine) complete(task *graph.Task, took time.Duration) {
	e.mu.Lock()

	got, ok := e.store.Get(task.Name)
	if !ok || got != task {
		// Cancelled while the program was running and already unlinked. The
		// name may since have been claimed by a new task; only the exact
		// record this dispatch ran may be completed.
		e.mu.Unlock()
		return
	}

	task.State = graph.StateDone
	e.unlinkLocked(task)
	e.store.Remove(task.Name)

	e.publish(events.TaskCompletedEvent{
		Name:      task.Name,
		Duration:  took,
		Timestamp: time.Now(),
	})
	e.record(task, OutcomeCompleted)
	e.publishProgressLocked()
	e.mu.Unlock()
}

// unlinkLocked removes all edges touching task and arms any dependent whose
// dependency set becomes empty. Returns the newly armed tasks. Caller must
// hold e.mu.
func (e *Engine) unlinkLocked(task *graph.Task) []*graph.Task {
	now := e.now()

	var freed []*graph.Task
	for depName := range task.Dependents {
		dependent, ok := e.store.Get(depName)
		if !ok {
			continue
		}
		e.store.Unlink(task, dependent)

		if len(dependent.DependsOn) == 0 && dependent.State == graph.StatePending {
			e.armLocked(dependent, now)
			freed = append(freed, dependent)
		}
	}

	for depName := range task.DependsOn {
		dep, ok := e.store.Get(depName)
		if !ok {
			continue
		}
		e.store.Unlink(dep, task)
	}

	return freed
}

// publish sends an event to the bus if one is configured. Bus publishing is
// non-blocking, so calling this under the store lock is safe.
func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(events.TopicTask, event)
	}
}

// record writes a journal entry if a journal is configured.
func (e *Engine) record(task *graph.Task, outcome string) {
	if e.journal != nil {
		e.journal.Record(task.Clone(), outcome)
	}
}

// publishProgressLocked publishes aggregate state counts. Caller must hold e.mu.
func (e *Engine) publishProgressLocked() {
	if e.bus == nil {
		return
	}

	progress := events.GraphProgressEvent{Timestamp: time.Now()}
	for _, task := range e.store.Tasks() {
		progress.Total++
		switch task.State {
		case graph.StatePending:
			progress.Pending++
		case graph.StateArmed:
			progress.Armed++
		case graph.StateRunning:
			progress.Running++
		}
	}
	e.bus.Publish(events.TopicGraph, progress)
}

func taskNames(tasks []*graph.Task) []string {
	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task.Name)
	}
	return names
}
