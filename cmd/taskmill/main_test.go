package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/taskmill/taskmill/internal/executor"
	"github.com/taskmill/taskmill/internal/outputs"
	"github.com/taskmill/taskmill/internal/scheduler"
)

// TestScheduleBatch tests that a batch file is admitted in order, with
// earlier entries usable as dependencies of later ones.
func TestScheduleBatch(t *testing.T) {
	provider, err := outputs.NewProvider(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	engine := scheduler.New(scheduler.Config{
		Sinks:    sinkProvider{provider},
		Executor: executor.NewScriptRunner(executor.NewProcessManager(), 4),
	})
	defer engine.Stop()

	at := time.Now().Add(10 * time.Minute).UnixMilli()
	batch := `[
		{"name": "fetch", "program": "/opt/fetch.sh", "scheduled_at": ` + itoa(at) + `},
		{"name": "build", "program": "/opt/build.sh", "scheduled_at": ` + itoa(at+1000) + `, "depends_on": ["fetch"], "parameters": ["--release"]}
	]`

	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(batch), 0644); err != nil {
		t.Fatal(err)
	}

	if err := scheduleBatch(engine, path); err != nil {
		t.Fatalf("scheduleBatch failed: %v", err)
	}

	if engine.Len() != 2 {
		t.Errorf("Live tasks = %d, want 2", engine.Len())
	}
	build, ok := engine.Get("build")
	if !ok {
		t.Fatal("build task missing")
	}
	if _, ok := build.DependsOn["fetch"]; !ok {
		t.Errorf("build.DependsOn = %v, want {fetch}", build.DependsOn)
	}
}

// TestScheduleBatchBadFile tests error paths for missing and malformed files.
func TestScheduleBatchBadFile(t *testing.T) {
	provider, err := outputs.NewProvider(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	engine := scheduler.New(scheduler.Config{
		Sinks:    sinkProvider{provider},
		Executor: executor.NewScriptRunner(executor.NewProcessManager(), 4),
	})
	defer engine.Stop()

	if err := scheduleBatch(engine, "/nonexistent/batch.json"); err == nil {
		t.Error("Expected error for missing batch file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`[{`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := scheduleBatch(engine, path); err == nil {
		t.Error("Expected error for malformed batch file")
	}
}

// TestProcessManagerKillAllOnShutdown verifies that KillAll terminates
// tracked task programs during simulated shutdown.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := executor.NewProcessManager()

	cmd := exec.CommandContext(context.Background(), "sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", count)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
