package history

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/taskmill/taskmill/internal/graph"
)

// Recorder adapts a Store into the engine's non-blocking journal hook.
// Record enqueues and returns immediately; a background worker writes entries
// with exponential-backoff retry behind a circuit breaker, so a sick journal
// database can never stall or fail scheduling.
type Recorder struct {
	store   Store
	queue   chan *Run
	breaker *gobreaker.CircuitBreaker
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewRecorder creates a Recorder and starts its worker.
func NewRecorder(store Store) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan *Run, 256),
		done:  make(chan struct{}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "history",
			MaxRequests: 3,                // Test requests allowed in half-open state
			Timeout:     30 * time.Second, // Stay open before testing recovery
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
			},
		}),
	}

	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues a journal entry for the task's current lifecycle outcome.
// Never blocks; entries are dropped when the queue is full.
func (r *Recorder) Record(task *graph.Task, outcome string) {
	run := &Run{
		Name:        task.Name,
		ProgramPath: task.ProgramPath,
		Parameters:  task.Parameters,
		ScheduledAt: task.ScheduledAt,
		Outcome:     outcome,
	}

	select {
	case r.queue <- run:
	default:
		log.Printf("history queue full, dropping %s entry for %q", outcome, task.Name)
	}
}

// Close drains the queue and stops the worker.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case run := <-r.queue:
			r.write(run)
		case <-r.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case run := <-r.queue:
					r.write(run)
				default:
					return
				}
			}
		}
	}
}

// write persists one entry with retry and circuit breaking. A write that
// still fails after retries is logged and dropped; the journal is
// best-effort by contract.
func (r *Recorder) write(run *Run) {
	operation := func() error {
		_, err := r.breaker.Execute(func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return nil, r.store.RecordRun(ctx, run)
		})
		if err != nil {
			// Circuit open: retrying immediately cannot help.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(operation, policy); err != nil {
		log.Printf("history write for %q failed: %v", run.Name, err)
	}
}
