package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/taskmill/taskmill/internal/graph"
)

// ScriptRunner executes a task's external program and streams its combined
// stdout and stderr into the task's output sink. It is the concrete executor
// hook behind the scheduling engine: the engine hands over a task when its
// timer fires, Run blocks until the program exits, and the engine performs
// the completion transition afterwards.
type ScriptRunner struct {
	pm  *ProcessManager
	sem *semaphore.Weighted
}

// NewScriptRunner creates a ScriptRunner. maxConcurrent bounds the number of
// programs running at once (defaults to 4 if <= 0); excess dispatches wait
// their turn, which may delay a task past its scheduled time but never runs
// it early.
func NewScriptRunner(pm *ProcessManager, maxConcurrent int64) *ScriptRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &ScriptRunner{
		pm:  pm,
		sem: semaphore.NewWeighted(maxConcurrent),
	}
}

// Run launches the task's program with its parameters and blocks until it
// exits. Stdout and stderr share the task's sink. The program's exit status
// is returned as-is; the engine treats it as opaque.
func (r *ScriptRunner) Run(ctx context.Context, task *graph.Task) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for execution slot: %w", err)
	}
	defer r.sem.Release(1)

	cmd := newCommand(ctx, task.ProgramPath, task.Parameters...)
	if task.Sink != nil {
		// Same writer for both streams: os/exec serializes writes through a
		// single descriptor, combining the streams like 2>&1.
		cmd.Stdout = task.Sink
		cmd.Stderr = task.Sink
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", task.ProgramPath, err)
	}

	r.pm.Track(cmd)
	defer r.pm.Untrack(cmd)

	return cmd.Wait()
}
