// Package dispatch runs independent scraping tasks across a bounded
// pool of workers. Each worker holds its own browser session for its
// whole lifetime; tasks are handed out through a shared channel and
// results come back in the order the tasks were submitted.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slidescraper/pkg/browser"
	"slidescraper/pkg/errs"
	"slidescraper/pkg/logger"
)

// MaxWorkers caps the pool regardless of configuration.
const MaxWorkers = 10

// SessionFactory creates the browser session a worker will use. The
// returned cleanup runs when the worker exits. A nil factory gives
// workers no session, which tests use to exercise the pool without a
// browser.
type SessionFactory func(ctx context.Context, workerID int) (*browser.Session, func(), error)

// WorkFunc processes one task on a worker's session.
type WorkFunc[T, R any] func(ctx context.Context, session *browser.Session, task T) (R, error)

// Result pairs a task with its outcome.
type Result[T, R any] struct {
	Task     T
	Value    R
	Err      error
	Duration time.Duration
	WorkerID int
}

// Succeeded reports whether the task completed without error.
func (r Result[T, R]) Succeeded() bool {
	return r.Err == nil
}

// BatchResult aggregates a whole run.
type BatchResult[T, R any] struct {
	Results    []Result[T, R]
	Successful int
	Failed     int
	Elapsed    time.Duration
}

// Dispatcher fans tasks out to session-holding workers.
type Dispatcher[T, R any] struct {
	workers      int
	factory      SessionFactory
	startupDelay time.Duration
	log          logger.Logger
}

// New creates a Dispatcher. workers must be positive; it is clamped to
// MaxWorkers and to the task count at run time.
func New[T, R any](workers int, factory SessionFactory, log logger.Logger) (*Dispatcher[T, R], error) {
	if workers <= 0 {
		return nil, errs.Newf(errs.KindConfiguration, "worker count must be positive, got %d", workers)
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Dispatcher[T, R]{
		workers:      workers,
		factory:      factory,
		startupDelay: 300 * time.Millisecond,
		log:          log,
	}, nil
}

// Run executes every task and returns all results indexed by
// submission order. A task failure never stops the batch; callers
// inspect per-task errors in the results.
func (d *Dispatcher[T, R]) Run(ctx context.Context, tasks []T, work WorkFunc[T, R]) *BatchResult[T, R] {
	start := time.Now()
	batch := &BatchResult[T, R]{
		Results: make([]Result[T, R], len(tasks)),
	}
	if len(tasks) == 0 {
		return batch
	}

	workers := d.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	type indexed struct {
		index int
		task  T
	}
	jobs := make(chan indexed)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			// stagger worker startup so browser launches don't pile up
			if d.factory != nil && workerID > 0 {
				select {
				case <-time.After(time.Duration(workerID) * d.startupDelay):
				case <-ctx.Done():
				}
			}

			var session *browser.Session
			var cleanup func()
			var sessionErr error
			if d.factory != nil {
				session, cleanup, sessionErr = d.factory(ctx, workerID)
				if cleanup != nil {
					defer cleanup()
				}
				if sessionErr != nil {
					d.log.ErrorWithFields("worker failed to start session", map[string]interface{}{
						"worker": workerID,
						"error":  sessionErr.Error(),
					})
				}
			}

			for job := range jobs {
				taskStart := time.Now()
				res := Result[T, R]{Task: job.task, WorkerID: workerID}

				switch {
				case sessionErr != nil:
					res.Err = sessionErr
				case ctx.Err() != nil:
					res.Err = ctx.Err()
				default:
					res.Value, res.Err = d.runTask(ctx, session, job.task, work)
				}
				res.Duration = time.Since(taskStart)
				batch.Results[job.index] = res
			}
		}(w)
	}

	for i, task := range tasks {
		jobs <- indexed{index: i, task: task}
	}
	close(jobs)
	wg.Wait()

	for _, res := range batch.Results {
		if res.Succeeded() {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}
	batch.Elapsed = time.Since(start)
	return batch
}

// runTask contains a single task's execution. A panicking task is
// recorded as that task's failure so the pool always joins.
func (d *Dispatcher[T, R]) runTask(ctx context.Context, session *browser.Session, task T, work WorkFunc[T, R]) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Newf(errs.KindUnknown, "task panicked: %v", r)
			d.log.ErrorWithFields("task panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()
	return work(ctx, session, task)
}
