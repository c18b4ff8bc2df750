package executor

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/taskmill/taskmill/internal/graph"
)

// syncBuffer is an in-memory io.WriteCloser sink for tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Close() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestRunCapturesCombinedOutput tests that stdout and stderr both land in
// the task's sink.
func TestRunCapturesCombinedOutput(t *testing.T) {
	runner := NewScriptRunner(NewProcessManager(), 4)
	sink := &syncBuffer{}

	task := graph.NewTask("combined", "/bin/sh", 0, []string{"-c", "echo out; echo err 1>&2"})
	task.Sink = sink

	if err := runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := sink.String()
	if !strings.Contains(got, "out") {
		t.Errorf("Sink missing stdout, got %q", got)
	}
	if !strings.Contains(got, "err") {
		t.Errorf("Sink missing stderr, got %q", got)
	}
}

// TestRunNonZeroExit tests that a failing program returns its exit error
// while output is still captured.
func TestRunNonZeroExit(t *testing.T) {
	runner := NewScriptRunner(NewProcessManager(), 4)
	sink := &syncBuffer{}

	task := graph.NewTask("failing", "/bin/sh", 0, []string{"-c", "echo before-failure; exit 3"})
	task.Sink = sink

	err := runner.Run(context.Background(), task)
	if err == nil {
		t.Fatal("Expected exit error from failing program")
	}
	if !strings.Contains(sink.String(), "before-failure") {
		t.Errorf("Output not captured before failure, got %q", sink.String())
	}
}

// TestRunMissingProgram tests that an unstartable program surfaces a start error.
func TestRunMissingProgram(t *testing.T) {
	runner := NewScriptRunner(NewProcessManager(), 4)

	task := graph.NewTask("missing", "/nonexistent/program", 0, nil)
	task.Sink = &syncBuffer{}

	err := runner.Run(context.Background(), task)
	if err == nil {
		t.Fatal("Expected error starting nonexistent program")
	}
	if !strings.Contains(err.Error(), "starting") {
		t.Errorf("Error %q does not mention start failure", err)
	}
}

// TestRunCancelledContext tests that a cancelled context fails the slot
// acquisition instead of launching the program.
func TestRunCancelledContext(t *testing.T) {
	runner := NewScriptRunner(NewProcessManager(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := graph.NewTask("cancelled", "/bin/sh", 0, []string{"-c", "echo run"})
	sink := &syncBuffer{}
	task.Sink = sink

	if err := runner.Run(ctx, task); err == nil {
		t.Fatal("Expected error running with cancelled context")
	}
	if sink.String() != "" {
		t.Errorf("Program ran despite cancelled context, output %q", sink.String())
	}
}

// TestProcessManagerTracking tests Track/Untrack bookkeeping through Run.
func TestProcessManagerTracking(t *testing.T) {
	pm := NewProcessManager()
	runner := NewScriptRunner(pm, 4)

	task := graph.NewTask("tracked", "/bin/sh", 0, []string{"-c", "true"})
	task.Sink = &syncBuffer{}

	if err := runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if pm.Count() != 0 {
		t.Errorf("Tracked processes after Run = %d, want 0", pm.Count())
	}
}
