package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/events"
	"github.com/taskmill/taskmill/internal/executor"
	"github.com/taskmill/taskmill/internal/history"
	"github.com/taskmill/taskmill/internal/outputs"
	"github.com/taskmill/taskmill/internal/scheduler"
	"github.com/taskmill/taskmill/internal/tui"
)

// batchEntry is one task in an optional startup batch file: a JSON array of
// schedule requests applied before the monitor starts.
type batchEntry struct {
	Name        string   `json:"name"`
	Program     string   `json:"program"`
	ScheduledAt int64    `json:"scheduled_at,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
}

// sinkProvider narrows the provider's concrete sink type to the interface the
// engine consumes.
type sinkProvider struct {
	provider *outputs.Provider
}

func (s sinkProvider) Provision(taskName string) (io.WriteCloser, error) {
	return s.provider.Provision(taskName)
}

func main() {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The daemon provisions the capture directory; the engine only ever sees
	// write destinations handed out by the provider.
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	provider, err := outputs.NewProvider(cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.PruneAfterHours > 0 {
		if err := provider.Prune(time.Duration(cfg.PruneAfterHours) * time.Hour); err != nil {
			log.Printf("WARNING: pruning old capture files: %v", err)
		}
	}

	bus := events.NewBus()
	defer bus.Close()

	var journal scheduler.Journal
	var recorder *history.Recorder
	if cfg.HistoryPath != "" {
		store, err := history.NewSQLiteStore(ctx, cfg.HistoryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder = history.NewRecorder(store)
		journal = recorder
	}

	pm := executor.NewProcessManager()
	runner := executor.NewScriptRunner(pm, cfg.MaxConcurrent)

	engine := scheduler.New(scheduler.Config{
		Sinks:    sinkProvider{provider},
		Executor: runner,
		Bus:      bus,
		Journal:  journal,
	})

	if len(os.Args) > 1 {
		if err := scheduleBatch(engine, os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error scheduling batch: %v\n", err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q')
		engine.Stop()
		if recorder != nil {
			recorder.Close()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		// Signal received; restore default handling so a second Ctrl+C
		// force-exits.
		stop()

		log.Println("Shutdown signal received, cleaning up...")

		engine.Stop()
		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing task programs: %v", err)
		}
		if recorder != nil {
			recorder.Close()
		}

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}
}

// scheduleBatch reads a JSON batch file and admits every entry in order.
// Entries earlier in the file can serve as dependencies of later ones.
func scheduleBatch(engine *scheduler.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, entry := range entries {
		wait, err := engine.Schedule(scheduler.ScheduleRequest{
			Name:        entry.Name,
			ProgramPath: entry.Program,
			ScheduledAt: entry.ScheduledAt,
			DependsOn:   entry.DependsOn,
			Parameters:  entry.Parameters,
		})
		if err != nil {
			return fmt.Errorf("scheduling %q: %w", entry.Name, err)
		}
		log.Printf("scheduled %q, dispatch in %dms", entry.Name, wait)
	}
	return nil
}
