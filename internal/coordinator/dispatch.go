package coordinator

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/workers"

	"github.com/alicklee/gridmr/internal/model"
)

// dispatchOutcome is what one dispatch attempt reports back to the
// scheduler's collector loop.
type dispatchOutcome struct {
	taskID   string
	workerID string
	taskType model.TaskType
	result   *model.TaskResult
	err      error
}

// dispatcher wraps github.com/ygrebnov/workers as the coordinator's pool
// of background tasks that issue dispatch requests to worker processes,
// so a slow worker never blocks other assignments.
type dispatcher struct {
	pool workers.Workers[dispatchOutcome]
	log  *logrus.Logger
}

func newDispatcher(ctx context.Context, log *logrus.Logger, maxConcurrent uint) *dispatcher {
	pool := workers.New[dispatchOutcome](ctx, &workers.Config{
		MaxWorkers:        maxConcurrent,
		StartImmediately:  true,
		TasksBufferSize:   64,
		ResultsBufferSize: 256,
		ErrorsBufferSize:  256,
	})
	return &dispatcher{pool: pool, log: log}
}

// submit enqueues fn to run on the dispatch pool; fn performs the actual
// HTTP call to a worker and returns the outcome.
func (d *dispatcher) submit(fn func(ctx context.Context) (dispatchOutcome, error)) {
	if err := d.pool.AddTask(fn); err != nil {
		d.log.WithError(err).Error("coordinator: failed to enqueue dispatch")
	}
}

// outcomes returns the channel the scheduler's collector loop drains.
func (d *dispatcher) outcomes() chan dispatchOutcome {
	return d.pool.GetResults()
}

// errs returns the channel carrying task-function errors (distinct from
// dispatchOutcome.err, which is a successfully-returned but failed
// dispatch attempt).
func (d *dispatcher) errs() chan error {
	return d.pool.GetErrors()
}
