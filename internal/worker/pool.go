// Package worker implements the bounded fan-out used by enrichment sweeps.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is one unit of sweep work.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Outcome pairs a task ID with its result.
type Outcome struct {
	ID  string
	Err error
}

// Pool runs tasks with a fixed number of goroutines. Enrichment sweeps hit
// small club sites, so the width stays low to keep the crawl polite.
type Pool struct {
	width  int
	logger *zap.Logger
}

// DefaultWidth is the fan-out used when none is configured.
const DefaultWidth = 2

// NewPool constructs a Pool. Width values below one fall back to DefaultWidth.
func NewPool(width int, logger *zap.Logger) *Pool {
	if width < 1 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{width: width, logger: logger}
}

// Run executes every task and returns one outcome per task, in completion
// order. A task error never stops the batch; context cancellation drains the
// remaining tasks as cancelled outcomes.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Outcome {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	outCh := make(chan Outcome, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if err := ctx.Err(); err != nil {
					outCh <- Outcome{ID: task.ID, Err: err}
					continue
				}
				err := task.Run(ctx)
				if err != nil {
					p.logger.Debug("task failed",
						zap.String("task_id", task.ID),
						zap.Error(err),
					)
				}
				outCh <- Outcome{ID: task.ID, Err: err}
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()
	close(outCh)

	outcomes := make([]Outcome, 0, len(tasks))
	for out := range outCh {
		outcomes = append(outcomes, out)
	}
	return outcomes
}
