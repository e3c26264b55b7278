// Package runner executes backend tasks either inline or through the batch
// queue. Both paths share Execute, which writes the output file and then
// registers it in the cache.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/metrics"
	"github.com/yumyai/roundup/pkg/result"
	"github.com/yumyai/roundup/pkg/scheduler"
)

// Task is a backend call plus where its output goes. It is what gets
// serialized onto the queue.
type Task struct {
	Call       backend.Call `json:"call"`
	CacheKey   cache.Key    `json:"cache_key,omitempty"`
	OutputPath string       `json:"output_path,omitempty"`
}

// CacheWrap makes the executing side write the output to outputPath and then
// map cacheKey to it. An empty key writes the file without caching it.
func CacheWrap(task Task, cacheKey cache.Key, outputPath string) Task {
	task.CacheKey = cacheKey
	task.OutputPath = outputPath
	return task
}

// Submission is a task with its queue options.
type Submission struct {
	Task    Task
	Options scheduler.Options
}

func SchedulerWrap(task Task, opts scheduler.Options) Submission {
	return Submission{Task: task, Options: opts}
}

// DispatchError is a failed run or submission. ExitCode is the backend's
// HTTP status when there is one and -1 otherwise.
type DispatchError struct {
	Op       backend.Operation
	Kwargs   backend.Kwargs
	ExitCode int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s failed (exit code %d): %v", e.Op, e.ExitCode, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func newDispatchError(call backend.Call, err error) *DispatchError {
	code := -1
	var be *backend.Error
	if errors.As(err, &be) {
		code = be.Status
	}
	return &DispatchError{Op: call.Op, Kwargs: call.Kwargs, ExitCode: code, Err: err}
}

// Execute runs the task, writes its output and registers it in the cache.
// The output file is written before the cache entry so a cache hit always
// points at a complete file.
func Execute(ctx context.Context, task Task, inv backend.Invoker, store cache.Store) (json.RawMessage, error) {
	out, err := inv.Invoke(ctx, task.Call)
	if err != nil {
		return nil, err
	}
	if task.OutputPath == "" {
		return out, nil
	}
	if err := result.WriteFile(task.OutputPath, out); err != nil {
		return nil, err
	}
	if task.CacheKey != "" && store != nil {
		if _, err := store.Set(ctx, task.CacheKey, task.OutputPath); err != nil {
			return nil, fmt.Errorf("cache result: %w", err)
		}
	}
	return out, nil
}

// Queue is the part of the batch scheduler the runner uses.
type Queue interface {
	Submit(ctx context.Context, payload []byte, opts scheduler.Options) (string, error)
	Status(ctx context.Context, jobID string) scheduler.Status
}

type Runner struct {
	Backend     backend.Invoker
	Cache       cache.Store
	Queue       Queue
	SyncTimeout time.Duration
}

func New(inv backend.Invoker, store cache.Store, queue Queue, syncTimeout time.Duration) *Runner {
	return &Runner{Backend: inv, Cache: store, Queue: queue, SyncTimeout: syncTimeout}
}

// RunSync executes the task in the caller's goroutine.
func (r *Runner) RunSync(ctx context.Context, task Task) (json.RawMessage, error) {
	if r.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.SyncTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := Execute(ctx, task, r.Backend, r.Cache)
	if err != nil {
		derr := newDispatchError(task.Call, err)
		metrics.Dispatches.WithLabelValues("sync", "error").Inc()
		logger.Error("Sync run failed",
			zap.String("op", string(derr.Op)),
			zap.Any("kwargs", derr.Kwargs),
			zap.Int("exit_code", derr.ExitCode),
			zap.Error(err))
		return nil, derr
	}
	metrics.Dispatches.WithLabelValues("sync", "ok").Inc()
	logger.Debug("Sync run finished", zap.String("op", string(task.Call.Op)), zap.Duration("took", time.Since(start)))
	return out, nil
}

// RunAsync queues the task and returns the job id.
func (r *Runner) RunAsync(ctx context.Context, sub Submission) (string, error) {
	if r.Queue == nil {
		return "", newDispatchError(sub.Task.Call, errors.New("no batch queue configured"))
	}
	payload, err := json.Marshal(sub.Task)
	if err != nil {
		return "", newDispatchError(sub.Task.Call, fmt.Errorf("encode task: %w", err))
	}
	jobID, err := r.Queue.Submit(ctx, payload, sub.Options)
	if err != nil {
		derr := newDispatchError(sub.Task.Call, err)
		metrics.Dispatches.WithLabelValues("async", "error").Inc()
		logger.Error("Async submit failed",
			zap.String("op", string(derr.Op)),
			zap.Any("kwargs", derr.Kwargs),
			zap.String("queue", sub.Options.Queue),
			zap.Error(err))
		return "", derr
	}
	metrics.Dispatches.WithLabelValues("async", "ok").Inc()
	logger.Info("Submitted async job", zap.String("job_id", jobID), zap.String("op", string(sub.Task.Call.Op)))
	return jobID, nil
}

// Status is Unknown when there is no queue.
func (r *Runner) Status(ctx context.Context, jobID string) scheduler.Status {
	if r.Queue == nil {
		return scheduler.Unknown
	}
	return r.Queue.Status(ctx, jobID)
}
