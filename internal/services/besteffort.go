package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of best-effort work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// BestEffortRunner runs side effects whose failure must not fail the caller.
// Tasks run concurrently under a shared deadline; the runner waits for all of
// them, logs each failure and reports which tasks succeeded.
type BestEffortRunner struct {
	timeout time.Duration
	log     *slog.Logger
}

// NewBestEffortRunner creates a runner with a per-batch timeout
func NewBestEffortRunner(timeout time.Duration, log *slog.Logger) *BestEffortRunner {
	return &BestEffortRunner{timeout: timeout, log: log}
}

// Run executes tasks and returns the outcome per task name. A panicking task
// counts as failed.
func (r *BestEffortRunner) Run(ctx context.Context, tasks ...Task) map[string]bool {
	// the request may finish before delivery does; keep values, drop cancellation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	results := make(map[string]bool, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			err := r.runOne(ctx, task)
			if err != nil {
				r.log.WarnContext(ctx, "best-effort task failed", "task", task.Name, "err", err)
			}
			mu.Lock()
			results[task.Name] = err == nil
			mu.Unlock()
		}(task)
	}
	wg.Wait()
	return results
}

func (r *BestEffortRunner) runOne(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return task.Run(ctx)
}
