package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/metrics"
	"github.com/yumyai/roundup/pkg/scheduler"
)

// JobSource is the consuming side of the batch queue.
type JobSource interface {
	Dequeue(ctx context.Context, queue string, timeout time.Duration) (*scheduler.Job, error)
	Finish(ctx context.Context, jobID string, jobErr error) error
}

// Pool drains one queue with a fixed number of goroutines, running each task
// through Execute.
type Pool struct {
	source      JobSource
	backend     backend.Invoker
	cache       cache.Store
	queue       string
	concurrency int
	jobTimeout  time.Duration
	pollTimeout time.Duration
	maxBackoff  time.Duration

	wg sync.WaitGroup
}

func NewPool(source JobSource, inv backend.Invoker, store cache.Store, queue string, concurrency int, jobTimeout time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		source:      source,
		backend:     inv,
		cache:       store,
		queue:       queue,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		pollTimeout: 5 * time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	logger.Info("Starting worker pool", zap.Int("workers", p.concurrency), zap.String("queue", p.queue))
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	log := logger.With(zap.Int("worker_id", workerID))

	failures := 0
	for {
		if ctx.Err() != nil {
			log.Info("Worker stopping")
			return
		}

		j, err := p.source.Dequeue(ctx, p.queue, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			backoff := time.Duration(1<<uint(min(failures, 5))) * time.Second
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
			log.Warn("Dequeue failed, backing off", zap.Error(err), zap.Int("failures", failures), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		if failures > 0 {
			log.Info("Queue connection recovered", zap.Int("after_failures", failures))
			failures = 0
		}
		if j == nil {
			continue
		}
		p.process(ctx, log, j)
	}
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, j *scheduler.Job) {
	log = log.With(zap.String("job_id", j.ID))
	jobErr := p.run(ctx, log, j)

	status := scheduler.Done
	if jobErr != nil {
		status = scheduler.Exited
		log.Error("Job failed", zap.Error(jobErr))
	} else {
		log.Info("Job completed")
	}
	metrics.WorkerTasks.WithLabelValues(string(status)).Inc()

	// the record must be updated even if ctx was cancelled mid-job
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.source.Finish(finishCtx, j.ID, jobErr); err != nil {
		log.Error("Failed to record job status", zap.Error(err))
	}
}

func (p *Pool) run(ctx context.Context, log *zap.Logger, j *scheduler.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic_value", r), zap.String("stack_trace", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var task Task
	if err := json.Unmarshal(j.Payload, &task); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}

	jobCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	log.Info("Processing job", zap.String("op", string(task.Call.Op)), zap.String("output_path", task.OutputPath))
	_, err = Execute(jobCtx, task, p.backend, p.cache)
	return err
}
